package otp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"tenant-auth-engine/internal/otp/domain"
	"tenant-auth-engine/internal/otp/repository"
)

// DefaultTTL is the challenge expiry applied when none is configured.
const DefaultTTL = 10 * time.Minute

var (
	// ErrUnknownIdentifier is returned by Issue when the identifier matches
	// neither principal store. Callers must not reveal which store matched.
	ErrUnknownIdentifier = errors.New("unknown identifier")
	// ErrNoChallenge is returned by Verify when no live challenge exists for
	// the identifier. Surfaced to callers with the same message as
	// ErrCodeMismatch; the distinct value exists for telemetry.
	ErrNoChallenge = errors.New("no live challenge")
	// ErrCodeMismatch is returned by Verify when the submitted code does not
	// match the newest live challenge, or the challenge was consumed by a
	// concurrent verifier first.
	ErrCodeMismatch = errors.New("code mismatch")
)

// Directory reports whether an identifier resolves to a principal in either
// account store. Implemented by the auth orchestrator over the principal repository.
type Directory interface {
	IdentifierExists(ctx context.Context, identifier string) (bool, error)
}

// Engine generates, persists, and single-use-validates passcodes. Delivery is
// the caller's concern; the engine's contract ends at "challenge persisted".
type Engine struct {
	challenges repository.Repository
	directory  Directory
	ttl        time.Duration
	now        func() time.Time
}

// NewEngine returns an Engine storing challenges with the given TTL
// (DefaultTTL when non-positive).
func NewEngine(challenges repository.Repository, directory Directory, ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Engine{
		challenges: challenges,
		directory:  directory,
		ttl:        ttl,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Issue generates a random 6-digit code, persists its hash with the engine's
// expiry, and returns the challenge plus the plaintext code for out-of-band
// delivery. Issuing does not invalidate older live challenges; validation
// only ever reaches the newest one. Returns ErrUnknownIdentifier when the
// identifier matches neither principal store.
func (e *Engine) Issue(ctx context.Context, identifier string) (*domain.Challenge, string, error) {
	known, err := e.directory.IdentifierExists(ctx, identifier)
	if err != nil {
		return nil, "", err
	}
	if !known {
		return nil, "", ErrUnknownIdentifier
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, "", err
	}
	now := e.now()
	c := &domain.Challenge{
		ID:         uuid.New().String(),
		Identifier: identifier,
		CodeHash:   HashCode(code),
		ExpiresAt:  now.Add(e.ttl),
		CreatedAt:  now,
	}
	if err := e.challenges.Create(ctx, c); err != nil {
		return nil, "", err
	}
	return c, code, nil
}

// Verify selects the newest live challenge for identifier and, on an exact
// match, atomically marks it used before returning. Replay of an already
// consumed code fails with ErrNoChallenge (the row is no longer live) or
// ErrCodeMismatch (lost the consume race); both must surface identically.
func (e *Engine) Verify(ctx context.Context, identifier, submitted string) error {
	c, err := e.challenges.NewestLive(ctx, identifier, e.now())
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNoChallenge
	}
	if !CodeEqual(submitted, c.CodeHash) {
		return ErrCodeMismatch
	}
	won, err := e.challenges.Consume(ctx, c.ID)
	if err != nil {
		return err
	}
	if !won {
		return ErrCodeMismatch
	}
	return nil
}

// TTL returns the challenge lifetime the engine issues with.
func (e *Engine) TTL() time.Duration {
	return e.ttl
}
