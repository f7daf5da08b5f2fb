package server

import (
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"tenant-auth-engine/internal/auth"
	"tenant-auth-engine/internal/policy/engine"
	principaldomain "tenant-auth-engine/internal/principal/domain"
	tenantdomain "tenant-auth-engine/internal/tenant/domain"
)

const bearerPrefix = "bearer "

// extractBearer returns the Bearer token from the Authorization header, or ""
// if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// Authenticate resolves the Bearer token to an identity and stores it in the
// request context. Both signed and opaque tokens are accepted; either shape
// must still be backed by a live session row. Requests without a resolvable
// identity get a 401.
func Authenticate(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				writeFailure(w, http.StatusUnauthorized, "No token provided")
				return
			}
			id, err := svc.Authenticate(r.Context(), token)
			if err != nil {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole gates a route to principals of the given role. Must run behind
// Authenticate.
func RequireRole(role principaldomain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := GetIdentity(r.Context())
			if !ok {
				writeFailure(w, http.StatusUnauthorized, "No token provided")
				return
			}
			if id.Principal.Role != role {
				writeFailure(w, http.StatusForbidden, "Insufficient privileges")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOrganizationAccess checks that the {organizationID} path value
// matches the caller's tenant binding. Superadmins may reach any organization.
func RequireOrganizationAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r.Context())
		if !ok {
			writeFailure(w, http.StatusUnauthorized, "No token provided")
			return
		}
		if id.Principal.Role == principaldomain.RoleSuperadmin {
			next.ServeHTTP(w, r)
			return
		}
		orgID := r.PathValue("organizationID")
		if orgID == "" || orgID != id.Tenant.ID {
			writeFailure(w, http.StatusForbidden, "Access to this organization is not permitted")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActiveOrganization re-checks the caller's tenant state at request
// time. A tenant suspended after login loses access without waiting for
// token expiry. Superadmins bypass the gate; the system pseudo-tenant is
// always active.
func RequireActiveOrganization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r.Context())
		if !ok {
			writeFailure(w, http.StatusUnauthorized, "No token provided")
			return
		}
		if id.Tenant == nil || !id.Tenant.Active() {
			writeFailure(w, http.StatusForbidden, "Organization is not active")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireModule gates a route on the policy engine's module-access decision,
// built from the caller's identity and the {module} path value.
func RequireModule(evaluator engine.Evaluator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := GetIdentity(r.Context())
			if !ok {
				writeFailure(w, http.StatusUnauthorized, "No token provided")
				return
			}
			module := r.PathValue("module")
			if module == "" {
				writeFailure(w, http.StatusBadRequest, "Module is required")
				return
			}
			in := engine.AccessInput{
				Role:   string(id.Principal.Role),
				Module: module,
			}
			if id.Tenant != nil {
				in.TenantStatus = string(id.Tenant.Status)
				in.Plan = id.Tenant.Plan
				in.EnabledModules = id.Tenant.Modules
			} else if id.Principal.Role == principaldomain.RoleSuperadmin {
				in.TenantStatus = string(tenantdomain.StatusActive)
			}
			allowed, err := evaluator.Allow(r.Context(), in)
			if err != nil {
				log.Printf("server: module access evaluation: %v", err)
				writeFailure(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if !allowed {
				writeFailure(w, http.StatusForbidden, "Module is not enabled for this organization")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LogRequests logs method, path, status, and duration for every request.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// Recover converts handler panics into 500 responses instead of dropping the
// connection.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				log.Printf("server: panic serving %s %s: %v\n%s", r.Method, r.URL.Path, v, debug.Stack())
				writeFailure(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
