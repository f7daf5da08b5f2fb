package repository

import (
	"context"
	"time"

	"tenant-auth-engine/internal/session/domain"
)

// Repository defines persistence for the session ledger.
type Repository interface {
	// Create inserts a session row. The session must have ID and Token set.
	Create(ctx context.Context, s *domain.Session) error
	// GetLiveByToken returns the unexpired session backing token, or nil when
	// none exists (never issued, invalidated, or expired).
	GetLiveByToken(ctx context.Context, token string, now time.Time) (*domain.Session, error)
	// InvalidateByToken deletes the session row for token. Idempotent:
	// deleting a non-existent token is not an error.
	InvalidateByToken(ctx context.Context, token string) error
	// DeleteExpired removes rows whose expiry is before cutoff. Hygiene only;
	// verification independently checks expiry.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
