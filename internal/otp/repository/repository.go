package repository

import (
	"context"
	"time"

	"tenant-auth-engine/internal/otp/domain"
)

// Repository defines persistence for OTP challenges.
type Repository interface {
	// Create persists a new challenge. The challenge must have ID set.
	Create(ctx context.Context, c *domain.Challenge) error
	// NewestLive returns the most recently created unused, unexpired challenge
	// for identifier, or nil if none exists. Older live challenges are
	// unreachable by design: they stay in place until they expire.
	NewestLive(ctx context.Context, identifier string, now time.Time) (*domain.Challenge, error)
	// Consume marks the challenge used if and only if it is still unused.
	// Returns false when another verifier consumed it first. The conditional
	// update is the concurrency guard; callers must not trust a prior read.
	Consume(ctx context.Context, id string) (bool, error)
	// DeleteExpired removes challenges whose expiry is before cutoff. Hygiene only.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
