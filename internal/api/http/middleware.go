package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"voluntia-backend/internal/config"
	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/logger"
	"voluntia-backend/internal/security"
)

const requestIDHeader = "X-Request-ID"

// HTTPMetrics records request outcomes per route template.
type HTTPMetrics interface {
	RecordHTTPRequest(method, path string, status int, elapsed time.Duration)
	IncInFlight()
	DecInFlight()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// requestIDMiddleware propagates or assigns a request ID and binds a
// request-scoped logger to the context.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.FromContext(r.Context()).Error("Handler panicked", "path", r.URL.Path, "panic", p)
				writeErrorMessage(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func accessLogMiddleware(m HTTPMetrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			if m != nil {
				m.IncInFlight()
				defer m.DecInFlight()
			}

			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			tmpl := routeTemplate(r)
			if m != nil {
				m.RecordHTTPRequest(r.Method, tmpl, rec.status, elapsed)
			}
			logger.FromContext(r.Context()).Info("HTTP request",
				"method", r.Method, "route", tmpl, "status", rec.status, "duration", elapsed)
		})
	}
}

// authMiddleware enforces the security level configured for the matched
// route and stores the caller claims in the context.
func authMiddleware(tokens security.TokenManager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			level := config.GetEndpointSecurityLevel(r.Method, routeTemplate(r))
			if level == config.SecurityPublic {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				writeErrorMessage(w, http.StatusUnauthorized, "unauthorized", "authorization token is not provided")
				return
			}
			claims, err := tokens.ValidateToken(token)
			if err != nil {
				writeErrorMessage(w, http.StatusUnauthorized, "unauthorized", "invalid token: "+err.Error())
				return
			}
			if level == config.SecurityAdmin && !claims.HasRole(string(domain.RoleSlugAdmin)) {
				writeErrorMessage(w, http.StatusForbidden, "forbidden", "admin role required")
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	// Remove Bearer prefix if present
	if len(header) > 7 && strings.ToUpper(header[0:7]) == "BEARER " {
		header = header[7:]
	}
	header = strings.TrimSpace(header)
	return header, header != ""
}
