// Package auth orchestrates the authentication flows: password login, OTP
// login, federated login, logout, and credential verification. It composes
// the principal stores, attempt tracker, OTP engine, session ledger, tenant
// resolver, and token provider, and owns the order in which their checks run.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"

	"tenant-auth-engine/internal/federation"
	"tenant-auth-engine/internal/otp"
	principaldomain "tenant-auth-engine/internal/principal/domain"
	"tenant-auth-engine/internal/security"
	sessiondomain "tenant-auth-engine/internal/session/domain"
	"tenant-auth-engine/internal/telemetry/otel"
	"tenant-auth-engine/internal/tenant"
	tenantdomain "tenant-auth-engine/internal/tenant/domain"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// PrincipalStore resolves principals across the two account stores.
type PrincipalStore interface {
	FindByEmail(ctx context.Context, email string) (*principaldomain.Principal, error)
	GetByID(ctx context.Context, id string, role principaldomain.Role) (*principaldomain.Principal, error)
	TouchLastLogin(ctx context.Context, id string, role principaldomain.Role) error
}

// SessionStore persists the session ledger rows backing issued tokens.
type SessionStore interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	GetLiveByToken(ctx context.Context, token string, now time.Time) (*sessiondomain.Session, error)
	InvalidateByToken(ctx context.Context, token string) error
}

// AttemptTracker enforces the rolling-window lockout policy.
type AttemptTracker interface {
	Locked(ctx context.Context, identifier string) bool
	RecordFailure(ctx context.Context, identifier string)
	Clear(ctx context.Context, identifier string)
}

// ChallengeEngine issues and single-use-validates one-time passcodes.
type ChallengeEngine interface {
	Issue(ctx context.Context, identifier string) (id string, code string, expiresAt time.Time, err error)
	Verify(ctx context.Context, identifier, submitted string) error
}

// TenantDirectory resolves tenant metadata and provisions first-login tenants.
type TenantDirectory interface {
	Resolve(ctx context.Context, tenantID string) (*tenantdomain.Tenant, error)
	ProvisionFederatedAdmin(ctx context.Context, email, name, pictureURL string) (*principaldomain.Principal, *tenantdomain.Tenant, error)
}

// OTPSink receives the plaintext passcode for out-of-band delivery. In
// production this is the SMTP sender; in dev OTP mode it is the in-memory
// dev store.
type OTPSink interface {
	Deliver(ctx context.Context, identifier, code string, expiresAt time.Time) error
}

// Result is a completed authentication: the issued token and the resolved
// principal and tenant it is bound to. Tenant is the system pseudo-tenant for
// superadmins. VerifyCredentials returns a Result with an empty Token.
type Result struct {
	Token     string
	ExpiresAt time.Time
	Principal *principaldomain.Principal
	Tenant    *tenantdomain.Tenant
	Method    sessiondomain.Method
}

// Service is the authentication orchestrator.
type Service struct {
	principals PrincipalStore
	sessions   SessionStore
	attempts   AttemptTracker
	challenges ChallengeEngine
	tenants    TenantDirectory
	verifier   federation.Verifier
	otpSink    OTPSink
	hasher     *security.Hasher
	tokens     *security.TokenProvider
	emitter    otel.EventEmitter

	tokenTTL time.Duration
	now      func() time.Time
}

// NewService wires the orchestrator. verifier may be nil, in which case
// federated login is rejected with ErrInvalidCredentials.
func NewService(
	principals PrincipalStore,
	sessions SessionStore,
	attempts AttemptTracker,
	challenges ChallengeEngine,
	tenants TenantDirectory,
	verifier federation.Verifier,
	otpSink OTPSink,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	emitter otel.EventEmitter,
	tokenTTL time.Duration,
) *Service {
	if emitter == nil {
		emitter = otel.NoopEmitter{}
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		principals: principals,
		sessions:   sessions,
		attempts:   attempts,
		challenges: challenges,
		tenants:    tenants,
		verifier:   verifier,
		otpSink:    otpSink,
		hasher:     hasher,
		tokens:     tokens,
		emitter:    emitter,
		tokenTTL:   tokenTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates an email/password pair and issues a signed bearer
// token. Gate order: input shape, lockout, credential match, account state,
// tenant state. Only credential mismatches feed the attempt ledger.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if s.attempts.Locked(ctx, email) {
		s.emitter.Emit(ctx, otel.Event{Type: otel.EventLockout, Identifier: email, Method: string(sessiondomain.MethodPassword)})
		return nil, ErrTooManyAttempts
	}

	p, err := s.resolveCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	t, err := s.gateState(ctx, p)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Mint(p.ID, p.Email, string(p.Role), tenantIDForClaims(p), t.DBName)
	if err != nil {
		return nil, fmt.Errorf("auth: mint token: %w", err)
	}
	if err := s.openSession(ctx, p, t, token, expiresAt, sessiondomain.MethodPassword); err != nil {
		return nil, err
	}
	s.attempts.Clear(ctx, email)
	s.finishLogin(ctx, p, sessiondomain.MethodPassword)

	return &Result{
		Token:     token,
		ExpiresAt: expiresAt,
		Principal: p,
		Tenant:    t,
		Method:    sessiondomain.MethodPassword,
	}, nil
}

// VerifyCredentials runs the password flow's checks without issuing a token
// or touching the session ledger or attempt ledger. Used by trusted internal
// callers that need a yes/no on a credential pair.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*Result, error) {
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	p, err := s.matchCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	t, err := s.gateState(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Result{Principal: p, Tenant: t}, nil
}

// RequestOTP issues a fresh passcode for the identifier and hands it to the
// delivery sink. A delivery failure surfaces as ErrOTPDelivery; the persisted
// challenge is left to expire unused.
func (s *Service) RequestOTP(ctx context.Context, identifier string) (expiresAt time.Time, err error) {
	if identifier == "" {
		return time.Time{}, ErrMissingFields
	}
	if !emailPattern.MatchString(identifier) {
		return time.Time{}, ErrInvalidEmail
	}

	id, code, expiresAt, err := s.challenges.Issue(ctx, identifier)
	if err != nil {
		return time.Time{}, err
	}
	s.emitter.Emit(ctx, otel.Event{Type: otel.EventOTPIssued, Identifier: identifier, Detail: id})

	if err := s.otpSink.Deliver(ctx, identifier, code, expiresAt); err != nil {
		log.Printf("auth: otp delivery to %s failed: %v", identifier, err)
		return time.Time{}, ErrOTPDelivery
	}
	return expiresAt, nil
}

// OTPLogin consumes a passcode and issues an opaque session token. The
// lockout gate applies here exactly as in the password flow; a wrong, stale,
// or missing code records a failure and surfaces as ErrInvalidCredentials.
func (s *Service) OTPLogin(ctx context.Context, identifier, code string) (*Result, error) {
	if identifier == "" || code == "" {
		return nil, ErrMissingFields
	}
	if s.attempts.Locked(ctx, identifier) {
		s.emitter.Emit(ctx, otel.Event{Type: otel.EventLockout, Identifier: identifier, Method: string(sessiondomain.MethodOTP)})
		return nil, ErrTooManyAttempts
	}

	if err := s.challenges.Verify(ctx, identifier, code); err != nil {
		if isChallengeRejection(err) {
			s.attempts.RecordFailure(ctx, identifier)
			s.emitter.Emit(ctx, otel.Event{Type: otel.EventLoginFailure, Identifier: identifier, Method: string(sessiondomain.MethodOTP)})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: verify passcode: %w", err)
	}
	s.emitter.Emit(ctx, otel.Event{Type: otel.EventOTPConsumed, Identifier: identifier})

	p, err := s.principals.FindByEmail(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("auth: resolve principal: %w", err)
	}
	if p == nil {
		// The code was consumed but the account vanished since issuance.
		return nil, ErrInvalidCredentials
	}
	t, err := s.gateState(ctx, p)
	if err != nil {
		return nil, err
	}

	token, err := security.NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("auth: generate token: %w", err)
	}
	expiresAt := s.now().Add(s.tokenTTL)
	if err := s.openSession(ctx, p, t, token, expiresAt, sessiondomain.MethodOTP); err != nil {
		return nil, err
	}
	s.attempts.Clear(ctx, identifier)
	s.finishLogin(ctx, p, sessiondomain.MethodOTP)

	return &Result{
		Token:     token,
		ExpiresAt: expiresAt,
		Principal: p,
		Tenant:    t,
		Method:    sessiondomain.MethodOTP,
	}, nil
}

// FederatedLogin validates a provider assertion, resolves or provisions the
// principal, and issues a signed bearer token. An asserted email found in the
// superadmin store logs in as that superadmin; an unknown email provisions a
// fresh admin with a default tenant. The attempt ledger is untouched: the
// provider already rate-limits its own credential checks.
func (s *Service) FederatedLogin(ctx context.Context, assertion string) (*Result, error) {
	if assertion == "" {
		return nil, ErrMissingFields
	}
	if s.verifier == nil {
		return nil, ErrInvalidCredentials
	}
	identity, err := s.verifier.Verify(ctx, assertion)
	if err != nil {
		if errors.Is(err, federation.ErrInvalidAssertion) {
			s.emitter.Emit(ctx, otel.Event{Type: otel.EventLoginFailure, Method: string(sessiondomain.MethodFederated), Detail: "invalid assertion"})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: verify assertion: %w", err)
	}

	p, err := s.principals.FindByEmail(ctx, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("auth: resolve principal: %w", err)
	}
	var t *tenantdomain.Tenant
	if p == nil {
		p, t, err = s.tenants.ProvisionFederatedAdmin(ctx, identity.Email, identity.Name, identity.PictureURL)
		if err != nil {
			return nil, fmt.Errorf("auth: provision federated admin: %w", err)
		}
		s.emitter.Emit(ctx, otel.Event{
			Type:        otel.EventTenantProvision,
			Identifier:  identity.Email,
			PrincipalID: p.ID,
			TenantID:    t.ID,
		})
	} else {
		t, err = s.gateState(ctx, p)
		if err != nil {
			return nil, err
		}
	}

	token, expiresAt, err := s.tokens.Mint(p.ID, p.Email, string(p.Role), tenantIDForClaims(p), t.DBName)
	if err != nil {
		return nil, fmt.Errorf("auth: mint token: %w", err)
	}
	if err := s.openSession(ctx, p, t, token, expiresAt, sessiondomain.MethodFederated); err != nil {
		return nil, err
	}
	s.finishLogin(ctx, p, sessiondomain.MethodFederated)

	return &Result{
		Token:     token,
		ExpiresAt: expiresAt,
		Principal: p,
		Tenant:    t,
		Method:    sessiondomain.MethodFederated,
	}, nil
}

// Logout invalidates the session behind token. Idempotent: a token that was
// never issued or is already invalidated logs out successfully.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrMissingToken
	}
	if err := s.sessions.InvalidateByToken(ctx, token); err != nil {
		return fmt.Errorf("auth: invalidate session: %w", err)
	}
	s.emitter.Emit(ctx, otel.Event{Type: otel.EventLogout})
	return nil
}

// Authenticate resolves a bearer token to its principal and tenant binding.
// Signed tokens must verify cryptographically AND still have a live session
// row; opaque tokens are resolved purely from the ledger. Store errors fail
// closed.
func (s *Service) Authenticate(ctx context.Context, token string) (*Result, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	if claims, err := s.tokens.Verify(token); err == nil {
		sess, err := s.sessions.GetLiveByToken(ctx, token, s.now())
		if err != nil {
			return nil, fmt.Errorf("auth: session lookup: %w", err)
		}
		if sess == nil {
			return nil, ErrInvalidCredentials
		}
		return s.resolveSession(ctx, claims.Subject, principaldomain.Role(claims.Role), sess)
	}

	sess, err := s.sessions.GetLiveByToken(ctx, token, s.now())
	if err != nil {
		return nil, fmt.Errorf("auth: session lookup: %w", err)
	}
	if sess == nil {
		return nil, ErrInvalidCredentials
	}
	return s.resolveSession(ctx, sess.PrincipalID, principaldomain.Role(sess.Role), sess)
}

func (s *Service) resolveSession(ctx context.Context, principalID string, role principaldomain.Role, sess *sessiondomain.Session) (*Result, error) {
	p, err := s.principals.GetByID(ctx, principalID, role)
	if err != nil {
		return nil, fmt.Errorf("auth: resolve principal: %w", err)
	}
	if p == nil || !p.Active {
		return nil, ErrInvalidCredentials
	}
	t, err := s.tenants.Resolve(ctx, tenantIDForClaims(p))
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: resolve tenant: %w", err)
	}
	return &Result{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		Principal: p,
		Tenant:    t,
		Method:    sess.Method,
	}, nil
}

// resolveCredentials is the ledger-feeding credential check used by Login.
func (s *Service) resolveCredentials(ctx context.Context, email, password string) (*principaldomain.Principal, error) {
	p, err := s.matchCredentials(ctx, email, password)
	if errors.Is(err, ErrInvalidCredentials) {
		s.attempts.RecordFailure(ctx, email)
		s.emitter.Emit(ctx, otel.Event{Type: otel.EventLoginFailure, Identifier: email, Method: string(sessiondomain.MethodPassword)})
	}
	return p, err
}

// matchCredentials resolves email to a principal and checks the password.
// Unknown email, federation-only account, and wrong password all collapse
// into ErrInvalidCredentials.
func (s *Service) matchCredentials(ctx context.Context, email, password string) (*principaldomain.Principal, error) {
	p, err := s.principals.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("auth: resolve principal: %w", err)
	}
	if p == nil || !p.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(p.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

// gateState applies the post-credential state gates: active account, then
// resolved and active tenant. Superadmins resolve to the system pseudo-tenant
// and always pass the tenant gate.
func (s *Service) gateState(ctx context.Context, p *principaldomain.Principal) (*tenantdomain.Tenant, error) {
	if !p.Active {
		return nil, ErrInactiveAccount
	}
	t, err := s.tenants.Resolve(ctx, tenantIDForClaims(p))
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("auth: resolve tenant: %w", err)
	}
	if !t.Active() {
		return nil, ErrInactiveTenant
	}
	return t, nil
}

func (s *Service) openSession(ctx context.Context, p *principaldomain.Principal, t *tenantdomain.Tenant, token string, expiresAt time.Time, method sessiondomain.Method) error {
	sess := &sessiondomain.Session{
		ID:          uuid.New().String(),
		PrincipalID: p.ID,
		TenantID:    t.ID,
		Token:       token,
		Role:        string(p.Role),
		Method:      method,
		ExpiresAt:   expiresAt,
		CreatedAt:   s.now(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return fmt.Errorf("auth: create session: %w", err)
	}
	return nil
}

// finishLogin performs post-issue bookkeeping: last-login touch and the
// success event. Neither failure can abort a login that already has a
// session; errors are logged.
func (s *Service) finishLogin(ctx context.Context, p *principaldomain.Principal, method sessiondomain.Method) {
	if err := s.principals.TouchLastLogin(ctx, p.ID, p.Role); err != nil {
		log.Printf("auth: touch last login for %s: %v", p.ID, err)
	}
	s.emitter.Emit(ctx, otel.Event{
		Type:        otel.EventLoginSuccess,
		Identifier:  p.Email,
		PrincipalID: p.ID,
		TenantID:    tenantIDForClaims(p),
		Method:      string(method),
	})
}

// tenantIDForClaims maps a principal to the tenant id carried in its token:
// the bound organization for admins, the system sentinel for superadmins.
func tenantIDForClaims(p *principaldomain.Principal) string {
	if p.Role == principaldomain.RoleSuperadmin {
		return tenantdomain.SystemTenantID
	}
	return p.TenantID
}

// isChallengeRejection reports whether err is a passcode rejection rather
// than an infrastructure failure.
func isChallengeRejection(err error) bool {
	return errors.Is(err, otp.ErrNoChallenge) || errors.Is(err, otp.ErrCodeMismatch)
}
