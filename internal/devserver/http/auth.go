package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/sessiongate/internal/devserver/service"
	"github.com/aussiebroadwan/sessiongate/pkg/authsdk"
	"github.com/aussiebroadwan/sessiongate/pkg/httpx"
	"github.com/aussiebroadwan/sessiongate/pkg/slogx"
)

const maxBodySize = 1 << 20

type AuthHandler struct {
	TokenService *service.TokenService
	Cookie       CookieOptions
}

// HandleLogin exchanges a username and password for an access token and a
// refresh cookie.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			authsdk.ErrInvalidCredentials.WriteError(w)
			return
		}
		log.Error("login failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	h.Cookie.set(w, pair.RefreshToken, pair.RefreshExpiresAt)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// HandleRefresh rotates the refresh cookie and issues a new access token.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	presented := h.Cookie.read(r)
	if presented == "" {
		authsdk.ErrMissingRefreshCredential.WriteError(w)
		return
	}

	pair, err := h.TokenService.Refresh(ctx, presented)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			h.Cookie.clear(w)
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}
		log.Error("refresh failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	h.Cookie.set(w, pair.RefreshToken, pair.RefreshExpiresAt)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// HandleLogout revokes the login session of the presented cookie and expires
// it. It always answers 204.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.TokenService.Logout(ctx, h.Cookie.read(r)); err != nil {
		slogx.FromContext(ctx).Error("logout failed", "error", err)
	}

	h.Cookie.clear(w)
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
