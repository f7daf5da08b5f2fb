package server

import (
	"context"
	"net/http"

	"tenant-auth-engine/internal/auth"
	"tenant-auth-engine/internal/devotp"
	"tenant-auth-engine/internal/policy/engine"
	principaldomain "tenant-auth-engine/internal/principal/domain"
	tenantdomain "tenant-auth-engine/internal/tenant/domain"
)

// Pinger reports data-store reachability (e.g. *pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// TenantResolver resolves organization metadata for the superadmin surface.
type TenantResolver interface {
	Resolve(ctx context.Context, tenantID string) (*tenantdomain.Tenant, error)
}

// Handlers holds the HTTP handlers and their dependencies. DevStore is nil
// unless dev OTP mode is enabled; the dev route is not mounted without it.
type Handlers struct {
	Auth     *auth.Service
	Tenants  TenantResolver
	DevStore devotp.Store
	DB       Pinger
	Policy   engine.Evaluator
}

// userPayload is the principal shape returned by the login flows.
type userPayload struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Organization string `json:"organization"`
}

// orgPayload is the tenant shape returned by the login flows.
type orgPayload struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	DB             string   `json:"db"`
	Status         string   `json:"status"`
	Plan           string   `json:"subscription_plan"`
	EnabledModules []string `json:"enabled_modules"`
}

func toUserPayload(p *principaldomain.Principal) userPayload {
	org := p.TenantID
	if p.Role == principaldomain.RoleSuperadmin {
		org = tenantdomain.SystemTenantID
	}
	return userPayload{
		ID:           p.ID,
		Name:         p.Name,
		Email:        p.Email,
		Role:         string(p.Role),
		Organization: org,
	}
}

func toOrgPayload(t *tenantdomain.Tenant) orgPayload {
	return orgPayload{
		ID:             t.ID,
		Name:           t.Name,
		DB:             t.DBName,
		Status:         string(t.Status),
		Plan:           t.Plan,
		EnabledModules: t.Modules,
	}
}

// Login handles POST /api/auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	res, err := h.Auth.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeSuccess(w, "", map[string]interface{}{
		"user":         toUserPayload(res.Principal),
		"organization": toOrgPayload(res.Tenant),
		"token":        res.Token,
	})
}

// VerifyCredentials handles POST /api/auth/verify-credentials. Same checks as
// login, but no token is issued and the attempt ledger is untouched.
func (h *Handlers) VerifyCredentials(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	res, err := h.Auth.VerifyCredentials(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeSuccess(w, "Credentials verified successfully", map[string]interface{}{
		"user": toUserPayload(res.Principal),
	})
}

// Logout handles POST /api/auth/logout. The token comes from the
// Authorization header; logout is idempotent.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	token := extractBearer(r)
	if err := h.Auth.Logout(r.Context(), token); err != nil {
		writeAuthError(w, err)
		return
	}
	writeSuccess(w, "Logout successful", nil)
}

// RequestOTP handles POST /api/auth/otp/request.
func (h *Handlers) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Email is required")
		return
	}
	if _, err := h.Auth.RequestOTP(r.Context(), req.Identifier); err != nil {
		writeAuthError(w, err)
		return
	}
	writeSuccess(w, "OTP sent successfully to your email", nil)
}

// VerifyOTP handles POST /api/auth/otp/verify.
func (h *Handlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		OTP        string `json:"otp"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Identifier and OTP are required")
		return
	}
	res, err := h.Auth.OTPLogin(r.Context(), req.Identifier, req.OTP)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeSuccess(w, "OTP verified successfully", map[string]interface{}{
		"user":         toUserPayload(res.Principal),
		"organization": toOrgPayload(res.Tenant),
		"token":        res.Token,
	})
}

// GoogleLogin handles POST /api/auth/google. The body carries the provider's
// ID token; an unknown asserted email provisions a fresh admin and tenant.
func (h *Handlers) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Token is required")
		return
	}
	res, err := h.Auth.FederatedLogin(r.Context(), req.Token)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeSuccess(w, "Google login successful", map[string]interface{}{
		"user":         toUserPayload(res.Principal),
		"organization": toOrgPayload(res.Tenant),
		"token":        res.Token,
	})
}

// DevOTP handles GET /api/dev/otp?identifier=... Mounted only in dev OTP mode.
func (h *Handlers) DevOTP(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		writeFailure(w, http.StatusBadRequest, "Identifier is required")
		return
	}
	code, ok := h.DevStore.Get(r.Context(), identifier)
	if !ok {
		writeFailure(w, http.StatusNotFound, "No OTP found for identifier")
		return
	}
	writeSuccess(w, "", map[string]interface{}{
		"identifier": identifier,
		"otp":        code,
	})
}

// ListModules handles GET /api/org/{organizationID}/modules. Returns the
// caller's tenant module set; the access middleware has already verified the
// organization binding.
func (h *Handlers) ListModules(w http.ResponseWriter, r *http.Request) {
	id, ok := GetIdentity(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "No token provided")
		return
	}
	writeSuccess(w, "", map[string]interface{}{
		"organization": id.Tenant.ID,
		"modules":      id.Tenant.Modules,
	})
}

// ModuleAccess handles GET /api/org/{organizationID}/modules/{module}. The
// RequireModule middleware performs the policy decision; reaching the handler
// means access is granted.
func (h *Handlers) ModuleAccess(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, "Module access granted", map[string]interface{}{
		"module": r.PathValue("module"),
	})
}

// OrganizationInfo handles GET /api/admin/organizations/{organizationID}.
// Superadmin-only inspection of any organization's metadata.
func (h *Handlers) OrganizationInfo(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tenants.Resolve(r.Context(), r.PathValue("organizationID"))
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeSuccess(w, "", map[string]interface{}{
		"organization": toOrgPayload(t),
	})
}

// Healthz handles GET /healthz: data-store ping plus a policy-engine probe.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			writeFailure(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	if h.Policy != nil {
		if err := h.Policy.HealthCheck(r.Context()); err != nil {
			writeFailure(w, http.StatusServiceUnavailable, "policy engine unavailable")
			return
		}
	}
	writeSuccess(w, "ok", nil)
}
