package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nammaooru/civic-reports/internal/http/response"
)

// UpdateUserRole handles PATCH /admin/users/{id}/role
func (h *Handlers) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if !decodeJSON(r, &req) {
		badJSON(w)
		return
	}

	if err := h.authService.UpdateUserRole(r.Context(), id, req.Role); err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "User role updated",
	})
}
