package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"voluntia-backend/internal/logger"
	"voluntia-backend/internal/service"
	"voluntia-backend/internal/validation"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeError maps service and validation errors onto HTTP responses.
// Internal and configuration failures are logged and reported opaquely.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Code: "validation_error", Fields: verr.Fields})
		return
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		writeErrorMessage(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		writeErrorMessage(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrInvalidState):
		writeErrorMessage(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, service.ErrConflict):
		writeErrorMessage(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, service.ErrConfiguration):
		logger.FromContext(r.Context()).Error("Configuration error", "path", r.URL.Path, "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "configuration_error", "the server is misconfigured, contact an administrator")
	default:
		logger.FromContext(r.Context()).Error("Request failed", "path", r.URL.Path, "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON: "+err.Error())
		return false
	}
	if err := validation.Struct(dst); err != nil {
		writeError(w, r, err)
		return false
	}
	return true
}
