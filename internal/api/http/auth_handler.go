package http

import (
	"net/http"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/service"
	"voluntia-backend/internal/validation"
)

type AuthHandler struct {
	auth service.AuthService
}

func NewAuthHandler(auth service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req validation.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "Bearer", User: user})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	user, err := h.auth.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile applies a partial profile edit for the caller.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req validation.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	claims, _ := ClaimsFromContext(r.Context())

	user, err := h.auth.UpdateProfile(r.Context(), claims.UserID, req.ProfileUpdate())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req validation.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	claims, _ := ClaimsFromContext(r.Context())

	if err := h.auth.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
