// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Any valid access token
	SecurityAdmin                       // Access token carrying the admin role
)

// EndpointSecurityConfig maps "METHOD route-template" to the required
// security level. Route templates are the gorilla/mux path templates.
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Public
	"POST /api/v1/applications": SecurityPublic,
	"POST /api/v1/auth/login":   SecurityPublic,
	"GET /healthz":              SecurityPublic,
	"GET /metrics":              SecurityPublic,

	// Authenticated
	"GET /api/v1/me":          SecurityAccess,
	"PUT /api/v1/me":          SecurityAccess,
	"PUT /api/v1/me/password": SecurityAccess,

	// Staff
	"GET /api/v1/admin/applications":                    SecurityAdmin,
	"GET /api/v1/admin/applications/{id}":               SecurityAdmin,
	"PUT /api/v1/admin/applications/{id}/schedule-call": SecurityAdmin,
	"PUT /api/v1/admin/applications/{id}/approve":       SecurityAdmin,
	"PUT /api/v1/admin/applications/{id}/decline":       SecurityAdmin,
	"GET /api/v1/admin/users":                           SecurityAdmin,
}

// GetEndpointSecurityLevel returns the level for a route; unknown routes
// require an access token.
func GetEndpointSecurityLevel(method, routeTemplate string) SecurityLevel {
	if level, ok := EndpointSecurityConfig[method+" "+routeTemplate]; ok {
		return level
	}
	return SecurityAccess
}
