package auth

import "errors"

// Sentinel errors for the auth flows; the HTTP layer maps them to status
// codes. Unknown-identifier and wrong-password deliberately share
// ErrInvalidCredentials so callers cannot enumerate accounts.
var (
	// ErrMissingFields: a required request field is absent. 400, no side effect.
	ErrMissingFields = errors.New("missing required fields")
	// ErrInvalidEmail: the identifier is not a plausible email address. 400.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrTooManyAttempts: the identifier is locked out. 429, checked before
	// credential verification and never merged with invalid credentials.
	ErrTooManyAttempts = errors.New("too many login attempts")
	// ErrInvalidCredentials: unknown identifier, wrong password, or a wrong,
	// expired, or missing OTP. 401.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount: credentials were correct but the account is
	// disabled. 403; no attempt is recorded for state gates.
	ErrInactiveAccount = errors.New("account is inactive")
	// ErrInactiveTenant: the principal's organization is not active. 403.
	ErrInactiveTenant = errors.New("organization is not active")
	// ErrMissingToken: no bearer token accompanied a request that needs one. 401.
	ErrMissingToken = errors.New("no token provided")
	// ErrOTPDelivery: the challenge was persisted but mail delivery failed;
	// the orphaned challenge expires unused.
	ErrOTPDelivery = errors.New("failed to deliver one-time passcode")
)
