// Package server exposes the authentication flows over HTTP/JSON with a
// uniform response envelope.
//
// Endpoints:
//   - POST /api/auth/login              - password login
//   - POST /api/auth/logout             - invalidate the caller's session
//   - POST /api/auth/verify-credentials - credential check without token issue
//   - POST /api/auth/otp/request        - issue and deliver a passcode
//   - POST /api/auth/otp/verify         - passcode login
//   - POST /api/auth/google             - federated login
//   - GET  /api/admin/organizations/{organizationID} - superadmin org inspection
//   - GET  /api/org/{organizationID}/modules          - list tenant modules
//   - GET  /api/org/{organizationID}/modules/{module} - module-access probe
//   - GET  /api/dev/otp                 - dev-only passcode retrieval
//   - GET  /healthz                     - readiness
package server

import (
	"net/http"
	"time"

	"tenant-auth-engine/internal/policy/engine"
	principaldomain "tenant-auth-engine/internal/principal/domain"
)

// NewRouter mounts all routes with their middleware chains. The dev OTP route
// is mounted only when h.DevStore is set.
func NewRouter(h *Handlers, evaluator engine.Evaluator) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("POST /api/auth/verify-credentials", h.VerifyCredentials)
	mux.HandleFunc("POST /api/auth/otp/request", h.RequestOTP)
	mux.HandleFunc("POST /api/auth/otp/verify", h.VerifyOTP)
	mux.HandleFunc("POST /api/auth/google", h.GoogleLogin)
	mux.HandleFunc("GET /healthz", h.Healthz)

	authn := Authenticate(h.Auth)
	mux.Handle("GET /api/admin/organizations/{organizationID}",
		authn(RequireRole(principaldomain.RoleSuperadmin)(http.HandlerFunc(h.OrganizationInfo))))
	mux.Handle("GET /api/org/{organizationID}/modules",
		authn(RequireOrganizationAccess(RequireActiveOrganization(http.HandlerFunc(h.ListModules)))))
	mux.Handle("GET /api/org/{organizationID}/modules/{module}",
		authn(RequireOrganizationAccess(RequireActiveOrganization(RequireModule(evaluator)(http.HandlerFunc(h.ModuleAccess))))))

	if h.DevStore != nil {
		mux.HandleFunc("GET /api/dev/otp", h.DevOTP)
	}

	return Recover(LogRequests(mux))
}

// NewHTTPServer returns an *http.Server with sane timeouts for the given
// handler.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
