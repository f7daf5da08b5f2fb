// Package attempt enforces the rolling-window lockout policy over the
// append-only attempt ledger.
package attempt

import (
	"context"
	"log"
	"time"

	"tenant-auth-engine/internal/attempt/repository"
)

const (
	// DefaultWindow is the rolling period over which failures are counted.
	DefaultWindow = 15 * time.Minute
	// DefaultThreshold locks an identifier once this many failures fall inside the window.
	DefaultThreshold = 5
)

// Tracker computes lockout state and records attempt bookkeeping. Ledger
// errors never abort an authentication flow: reads fail open to zero and
// writes are logged and dropped. Fail-open on reads mirrors the behavior the
// product shipped with; see DESIGN.md for the recorded decision.
type Tracker struct {
	ledger    repository.Ledger
	window    time.Duration
	threshold int
	now       func() time.Time
}

// NewTracker returns a Tracker over ledger with the given window and
// threshold; non-positive values fall back to the defaults.
func NewTracker(ledger repository.Ledger, window time.Duration, threshold int) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{
		ledger:    ledger,
		window:    window,
		threshold: threshold,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Count returns the number of failures for identifier inside the trailing
// window. A ledger read error degrades to 0 and is logged.
func (t *Tracker) Count(ctx context.Context, identifier string) int {
	n, err := t.ledger.CountSince(ctx, identifier, t.now().Add(-t.window))
	if err != nil {
		log.Printf("attempt: count for %s failed, treating as zero: %v", identifier, err)
		return 0
	}
	return n
}

// Locked reports whether identifier has reached the lockout threshold.
func (t *Tracker) Locked(ctx context.Context, identifier string) bool {
	return t.Count(ctx, identifier) >= t.threshold
}

// RecordFailure appends one failure record. Write errors are logged, never surfaced.
func (t *Tracker) RecordFailure(ctx context.Context, identifier string) {
	if err := t.ledger.Record(ctx, identifier); err != nil {
		log.Printf("attempt: record for %s failed: %v", identifier, err)
	}
}

// Clear removes all records for identifier. Called only after a fully
// successful authentication. Write errors are logged, never surfaced.
func (t *Tracker) Clear(ctx context.Context, identifier string) {
	if err := t.ledger.Clear(ctx, identifier); err != nil {
		log.Printf("attempt: clear for %s failed: %v", identifier, err)
	}
}

// Prune deletes records older than the window. Storage hygiene; callers may
// run it periodically.
func (t *Tracker) Prune(ctx context.Context) (int64, error) {
	return t.ledger.PruneOlderThan(ctx, t.now().Add(-t.window))
}
