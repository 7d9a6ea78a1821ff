package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/sessiongate/internal/devserver/service"
	"github.com/aussiebroadwan/sessiongate/pkg/authsdk"
	"github.com/aussiebroadwan/sessiongate/pkg/httpx"
)

// DepartmentsHandler serves the sample resources guarded by role checks.
type DepartmentsHandler struct {
	Directory *service.Directory
}

type departmentResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func departmentID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *DepartmentsHandler) lookup(w http.ResponseWriter, r *http.Request) (service.Department, bool) {
	id, ok := departmentID(r)
	if !ok {
		authsdk.ErrInvalidRequest.WriteError(w)
		return service.Department{}, false
	}
	dep, ok := h.Directory.Department(id)
	if !ok {
		httpx.WriteJSON(w, http.StatusNotFound, authsdk.ErrorResponse{Error: "not_found"})
		return service.Department{}, false
	}
	return dep, true
}

func (h *DepartmentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	dep, ok := h.lookup(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, departmentResponse{ID: dep.ID, Name: dep.Name})
}

func (h *DepartmentsHandler) HandleProjects(w http.ResponseWriter, r *http.Request) {
	dep, ok := h.lookup(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dep.Projects)
}
