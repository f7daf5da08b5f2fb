package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tenant-auth-engine/internal/auth"
	"tenant-auth-engine/internal/devotp"
	"tenant-auth-engine/internal/federation"
	"tenant-auth-engine/internal/otp"
	otpdomain "tenant-auth-engine/internal/otp/domain"
	"tenant-auth-engine/internal/policy/engine"
	principaldomain "tenant-auth-engine/internal/principal/domain"
	"tenant-auth-engine/internal/security"
	sessiondomain "tenant-auth-engine/internal/session/domain"
	"tenant-auth-engine/internal/telemetry/otel"
	"tenant-auth-engine/internal/tenant"
	tenantdomain "tenant-auth-engine/internal/tenant/domain"
)

type fakePrincipals struct {
	mu sync.Mutex
	m  map[string]*principaldomain.Principal
}

func (f *fakePrincipals) FindByEmail(ctx context.Context, email string) (*principaldomain.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.m {
		if p.Email == email && p.Role == principaldomain.RoleSuperadmin {
			return p, nil
		}
	}
	for _, p := range f.m {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePrincipals) GetByID(ctx context.Context, id string, role principaldomain.Role) (*principaldomain.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.m[id]
	if !ok || p.Role != role {
		return nil, nil
	}
	return p, nil
}

func (f *fakePrincipals) TouchLastLogin(ctx context.Context, id string, role principaldomain.Role) error {
	return nil
}

type fakeSessions struct {
	mu sync.Mutex
	m  map[string]*sessiondomain.Session
}

func (f *fakeSessions) Create(ctx context.Context, s *sessiondomain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s2 := *s
	f.m[s.Token] = &s2
	return nil
}

func (f *fakeSessions) GetLiveByToken(ctx context.Context, token string, now time.Time) (*sessiondomain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.m[token]
	if !ok || !s.Live(now) {
		return nil, nil
	}
	s2 := *s
	return &s2, nil
}

func (f *fakeSessions) InvalidateByToken(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.m, token)
	return nil
}

type fakeTracker struct {
	mu       sync.Mutex
	failures map[string]int
}

func (f *fakeTracker) Locked(ctx context.Context, identifier string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[identifier] >= 5
}

func (f *fakeTracker) RecordFailure(ctx context.Context, identifier string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[identifier]++
}

func (f *fakeTracker) Clear(ctx context.Context, identifier string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, identifier)
}

type fakeChallenges struct {
	mu sync.Mutex
	m  map[string]*otpdomain.Challenge
}

func (f *fakeChallenges) Create(ctx context.Context, c *otpdomain.Challenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c2 := *c
	f.m[c.ID] = &c2
	return nil
}

func (f *fakeChallenges) NewestLive(ctx context.Context, identifier string, now time.Time) (*otpdomain.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newest *otpdomain.Challenge
	for _, c := range f.m {
		if c.Identifier != identifier || !c.Live(now) {
			continue
		}
		if newest == nil || c.CreatedAt.After(newest.CreatedAt) {
			newest = c
		}
	}
	if newest == nil {
		return nil, nil
	}
	c2 := *newest
	return &c2, nil
}

func (f *fakeChallenges) Consume(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.m[id]
	if !ok || c.Used {
		return false, nil
	}
	c.Used = true
	return true, nil
}

func (f *fakeChallenges) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeTenants struct {
	m map[string]*tenantdomain.Tenant
}

func (f *fakeTenants) Resolve(ctx context.Context, tenantID string) (*tenantdomain.Tenant, error) {
	if tenantID == tenantdomain.SystemTenantID {
		return tenantdomain.System(), nil
	}
	t, ok := f.m[tenantID]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return t, nil
}

func (f *fakeTenants) ProvisionFederatedAdmin(ctx context.Context, email, name, pictureURL string) (*principaldomain.Principal, *tenantdomain.Tenant, error) {
	return nil, nil, errors.New("not supported in this test")
}

type fakeVerifier struct {
	identity *federation.Identity
	err      error
}

func (f *fakeVerifier) Verify(ctx context.Context, assertion string) (*federation.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

type captureSink struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *captureSink) Deliver(ctx context.Context, identifier, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[identifier] = code
	return nil
}

type serverHarness struct {
	router   http.Handler
	handlers *Handlers
	sink     *captureSink
	verifier *fakeVerifier
	devStore *devotp.MemoryStore
}

func newTestServer(t *testing.T) *serverHarness {
	t.Helper()

	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	hasher := security.NewHasher(4)

	hash, err := hasher.Hash([]byte("hunter22"))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	principals := &fakePrincipals{m: map[string]*principaldomain.Principal{
		"admin-1": {
			ID: "admin-1", Email: "admin@acme.test", Name: "Admin",
			PasswordHash: hash, Role: principaldomain.RoleAdmin,
			TenantID: "org-1", Provider: principaldomain.ProviderLocal, Active: true,
		},
		"super-1": {
			ID: "super-1", Email: "root@system.test", Name: "Root",
			PasswordHash: hash, Role: principaldomain.RoleSuperadmin,
			Provider: principaldomain.ProviderLocal, Active: true,
		},
	}}
	tenants := &fakeTenants{m: map[string]*tenantdomain.Tenant{
		"org-1": {
			ID: "org-1", Name: "Acme", DBName: "org_acme",
			Status: tenantdomain.StatusActive, Plan: "standard",
			Modules: []string{"basic", "banking"},
		},
	}}
	sessions := &fakeSessions{m: make(map[string]*sessiondomain.Session)}
	tracker := &fakeTracker{failures: make(map[string]int)}
	challenges := &fakeChallenges{m: make(map[string]*otpdomain.Challenge)}
	verifier := &fakeVerifier{}
	sink := &captureSink{codes: make(map[string]string)}
	devStore := devotp.NewMemoryStore()

	engineOTP := otp.NewEngine(challenges, auth.PrincipalDirectory{Principals: principals}, 10*time.Minute)
	svc := auth.NewService(
		principals, sessions, tracker,
		auth.EngineChallenger{Engine: engineOTP},
		tenants, verifier, sink,
		hasher, tokens, otel.NoopEmitter{}, 24*time.Hour,
	)

	evaluator, err := engine.NewOPAEvaluator(context.Background())
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}

	handlers := &Handlers{Auth: svc, Tenants: tenants, DevStore: devStore, Policy: evaluator}
	return &serverHarness{
		router:   NewRouter(handlers, evaluator),
		handlers: handlers,
		sink:     sink,
		verifier: verifier,
		devStore: devStore,
	}
}

func (h *serverHarness) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
	}
	return env
}

func (h *serverHarness) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": email, "password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]interface{})
	return data["token"].(string)
}

func TestLoginEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "admin@acme.test", "password": "hunter22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Error("success flag should be true")
	}
	data := env.Data.(map[string]interface{})
	if data["token"] == "" {
		t.Error("response should carry a token")
	}
	user := data["user"].(map[string]interface{})
	if user["email"] != "admin@acme.test" || user["role"] != "admin" {
		t.Errorf("user payload: %v", user)
	}
	org := data["organization"].(map[string]interface{})
	if org["db"] != "org_acme" {
		t.Errorf("organization payload: %v", org)
	}
}

func TestLoginEndpointFailures(t *testing.T) {
	h := newTestServer(t)

	cases := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong password", map[string]string{"identifier": "admin@acme.test", "password": "nope"}, http.StatusUnauthorized},
		{"unknown email", map[string]string{"identifier": "ghost@acme.test", "password": "nope"}, http.StatusUnauthorized},
		{"bad email", map[string]string{"identifier": "not-an-email", "password": "x"}, http.StatusBadRequest},
		{"missing fields", map[string]string{}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/api/auth/login", "", tc.body)
			if rec.Code != tc.want {
				t.Errorf("status: want %d, got %d (%s)", tc.want, rec.Code, rec.Body.String())
			}
			if env := decodeEnvelope(t, rec); env.Success {
				t.Error("success flag should be false")
			}
		})
	}
}

func TestLoginEndpointLockout(t *testing.T) {
	h := newTestServer(t)

	for i := 0; i < 5; i++ {
		h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"identifier": "admin@acme.test", "password": "nope",
		})
	}
	rec := h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "admin@acme.test", "password": "hunter22",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status: want 429, got %d", rec.Code)
	}
}

func TestLogoutEndpoint(t *testing.T) {
	h := newTestServer(t)
	token := h.login(t, "admin@acme.test", "hunter22")

	rec := h.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: want 200, got %d", rec.Code)
	}
	// Idempotent second logout.
	rec = h.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("second logout: want 200, got %d", rec.Code)
	}
	// No token at all is a 401.
	rec = h.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("logout without token: want 401, got %d", rec.Code)
	}
}

func TestOTPEndpoints(t *testing.T) {
	h := newTestServer(t)

	rec := h.do(t, http.MethodPost, "/api/auth/otp/request", "", map[string]string{
		"identifier": "admin@acme.test",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("otp request: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	code := h.sink.codes["admin@acme.test"]
	if len(code) != 6 {
		t.Fatalf("delivered code: %q", code)
	}

	rec = h.do(t, http.MethodPost, "/api/auth/otp/verify", "", map[string]string{
		"identifier": "admin@acme.test", "otp": code,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("otp verify: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]interface{})
	token := data["token"].(string)
	if len(token) != 64 {
		t.Errorf("opaque token length: want 64, got %d", len(token))
	}

	// Replay of the consumed code.
	rec = h.do(t, http.MethodPost, "/api/auth/otp/verify", "", map[string]string{
		"identifier": "admin@acme.test", "otp": code,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("otp replay: want 401, got %d", rec.Code)
	}
}

func TestOTPRequestUnknownIdentifier(t *testing.T) {
	h := newTestServer(t)
	rec := h.do(t, http.MethodPost, "/api/auth/otp/request", "", map[string]string{
		"identifier": "ghost@acme.test",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: want 404, got %d", rec.Code)
	}
}

func TestGoogleEndpoint(t *testing.T) {
	h := newTestServer(t)
	h.verifier.identity = &federation.Identity{Email: "admin@acme.test", Name: "Admin"}

	rec := h.do(t, http.MethodPost, "/api/auth/google", "", map[string]string{"token": "assertion"})
	if rec.Code != http.StatusOK {
		t.Fatalf("google login: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "Google login successful" {
		t.Errorf("message: got %q", env.Message)
	}

	h.verifier.identity = nil
	h.verifier.err = federation.ErrInvalidAssertion
	rec = h.do(t, http.MethodPost, "/api/auth/google", "", map[string]string{"token": "bad"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid assertion: want 401, got %d", rec.Code)
	}
}

func TestVerifyCredentialsEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := h.do(t, http.MethodPost, "/api/auth/verify-credentials", "", map[string]string{
		"identifier": "admin@acme.test", "password": "hunter22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]interface{})
	if _, hasToken := data["token"]; hasToken {
		t.Error("verify-credentials must not return a token")
	}
}

func TestModuleRoutes(t *testing.T) {
	h := newTestServer(t)
	token := h.login(t, "admin@acme.test", "hunter22")

	rec := h.do(t, http.MethodGet, "/api/org/org-1/modules", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list modules: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = h.do(t, http.MethodGet, "/api/org/org-1/modules/banking", token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("enabled module: want 200, got %d", rec.Code)
	}
	rec = h.do(t, http.MethodGet, "/api/org/org-1/modules/payroll", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("disabled module: want 403, got %d", rec.Code)
	}
	// Cross-organization access.
	rec = h.do(t, http.MethodGet, "/api/org/org-other/modules/banking", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign org: want 403, got %d", rec.Code)
	}
	// No token.
	rec = h.do(t, http.MethodGet, "/api/org/org-1/modules/banking", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: want 401, got %d", rec.Code)
	}
}

func TestModuleRoutesSuperadmin(t *testing.T) {
	h := newTestServer(t)
	token := h.login(t, "root@system.test", "hunter22")

	// Superadmins reach any organization and any module.
	rec := h.do(t, http.MethodGet, "/api/org/org-1/modules/payroll", token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("superadmin module access: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestAdminOrganizationRoute(t *testing.T) {
	h := newTestServer(t)

	superToken := h.login(t, "root@system.test", "hunter22")
	rec := h.do(t, http.MethodGet, "/api/admin/organizations/org-1", superToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("superadmin org info: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]interface{})
	org := data["organization"].(map[string]interface{})
	if org["id"] != "org-1" {
		t.Errorf("organization id: got %v", org["id"])
	}

	rec = h.do(t, http.MethodGet, "/api/admin/organizations/missing", superToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing org: want 404, got %d", rec.Code)
	}

	// Tenant admins are shut out regardless of target.
	adminToken := h.login(t, "admin@acme.test", "hunter22")
	rec = h.do(t, http.MethodGet, "/api/admin/organizations/org-1", adminToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("admin on superadmin route: want 403, got %d", rec.Code)
	}
}

func TestProtectedRouteAfterLogout(t *testing.T) {
	h := newTestServer(t)
	token := h.login(t, "admin@acme.test", "hunter22")

	if rec := h.do(t, http.MethodPost, "/api/auth/logout", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("logout: %d", rec.Code)
	}
	rec := h.do(t, http.MethodGet, "/api/org/org-1/modules", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("blacklisted token: want 401, got %d", rec.Code)
	}
}

func TestDevOTPEndpoint(t *testing.T) {
	h := newTestServer(t)
	h.devStore.Put(context.Background(), "admin@acme.test", "123456", time.Now().Add(10*time.Minute))

	rec := h.do(t, http.MethodGet, "/api/dev/otp?identifier=admin@acme.test", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dev otp: want 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]interface{})
	if data["otp"] != "123456" {
		t.Errorf("otp: want 123456, got %v", data["otp"])
	}

	rec = h.do(t, http.MethodGet, "/api/dev/otp?identifier=ghost@acme.test", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown identifier: want 404, got %d", rec.Code)
	}
	rec = h.do(t, http.MethodGet, "/api/dev/otp", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing identifier: want 400, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t)
	rec := h.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: want 200, got %d", rec.Code)
	}
}
