package repository

import (
	"context"
	"time"
)

// Ledger is the append-only store of failed authentication attempts.
// Records are never mutated; clearing an identifier deletes its records.
type Ledger interface {
	// CountSince returns the number of records for identifier with a
	// timestamp at or after since.
	CountSince(ctx context.Context, identifier string, since time.Time) (int, error)
	// Record appends one attempt record for identifier at the current time.
	Record(ctx context.Context, identifier string) error
	// Clear deletes all records for identifier.
	Clear(ctx context.Context, identifier string) error
	// PruneOlderThan deletes records older than cutoff across all identifiers.
	// Storage hygiene only; correctness never depends on it.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
