package http

import (
	"net/http"

	"github.com/aussiebroadwan/sessiongate/internal/devserver/service"
	"github.com/aussiebroadwan/sessiongate/pkg/authsdk"
	"github.com/aussiebroadwan/sessiongate/pkg/httpx"
	"github.com/aussiebroadwan/sessiongate/pkg/slogx"
)

type UserRolesHandler struct {
	RolesService *service.RolesService
}

// ServeHTTP returns the caller's role assignments as a JSON array.
func (h *UserRolesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	grants, err := h.RolesService.ListForUser(ctx, userID)
	if err != nil {
		log.Error("failed to list role assignments", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, grants)
}
