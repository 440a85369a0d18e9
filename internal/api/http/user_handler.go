package http

import (
	"net/http"
	"strings"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/service"
	"voluntia-backend/internal/validation"
)

type UserHandler struct {
	users service.UserService
}

func NewUserHandler(users service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// List serves the staff user directory, filtered by role slug and a
// name or email search.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, ok := pageParams(w, r, q)
	if !ok {
		return
	}
	query := validation.UserQuery{
		RoleSlug: strings.TrimSpace(q.Get("roleSlug")),
		Search:   strings.TrimSpace(q.Get("search")),
		Page:     page,
		Limit:    limit,
	}
	if err := validation.Struct(&query); err != nil {
		writeError(w, r, err)
		return
	}

	filter := domain.UserFilter{Search: query.Search, Page: query.Page, Limit: query.Limit}
	if query.RoleSlug != "" {
		slug := domain.RoleSlug(query.RoleSlug)
		filter.RoleSlug = &slug
	}

	result, err := h.users.ListUsers(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
