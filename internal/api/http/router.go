package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"voluntia-backend/internal/security"
	"voluntia-backend/internal/service"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Check(ctx context.Context) error
}

type RouterDeps struct {
	Intake         service.IntakeService
	Workflow       service.WorkflowService
	Auth           service.AuthService
	Users          service.UserService
	Tokens         security.TokenManager
	Health         HealthChecker
	Metrics        HTTPMetrics  // optional
	MetricsHandler http.Handler // optional, served on /metrics
}

// NewRouter builds the HTTP API. Authentication is decided per route by
// config.GetEndpointSecurityLevel.
func NewRouter(deps RouterDeps) http.Handler {
	apps := NewApplicationHandler(deps.Intake, deps.Workflow)
	auth := NewAuthHandler(deps.Auth)
	users := NewUserHandler(deps.Users)

	r := mux.NewRouter()
	r.Use(accessLogMiddleware(deps.Metrics), authMiddleware(deps.Tokens))

	r.HandleFunc("/healthz", healthHandler(deps.Health)).Methods(http.MethodGet)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/applications", apps.Submit).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", auth.Login).Methods(http.MethodPost)
	api.HandleFunc("/me", auth.Me).Methods(http.MethodGet)
	api.HandleFunc("/me", auth.UpdateProfile).Methods(http.MethodPut)
	api.HandleFunc("/me/password", auth.ChangePassword).Methods(http.MethodPut)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/applications", apps.List).Methods(http.MethodGet)
	admin.HandleFunc("/applications/{id}", apps.Get).Methods(http.MethodGet)
	admin.HandleFunc("/applications/{id}/schedule-call", apps.ScheduleCall).Methods(http.MethodPut)
	admin.HandleFunc("/applications/{id}/approve", apps.Approve).Methods(http.MethodPut)
	admin.HandleFunc("/applications/{id}/decline", apps.Decline).Methods(http.MethodPut)
	admin.HandleFunc("/users", users.List).Methods(http.MethodGet)

	return requestIDMiddleware(recoveryMiddleware(r))
}

func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.Check(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
