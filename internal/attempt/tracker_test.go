package attempt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memLedger struct {
	mu      sync.Mutex
	records map[string][]time.Time
	fail    bool
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[string][]time.Time)}
}

func (l *memLedger) CountSince(ctx context.Context, identifier string, since time.Time) (int, error) {
	if l.fail {
		return 0, errors.New("ledger unavailable")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, at := range l.records[identifier] {
		if at.After(since) {
			n++
		}
	}
	return n, nil
}

func (l *memLedger) Record(ctx context.Context, identifier string) error {
	if l.fail {
		return errors.New("ledger unavailable")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[identifier] = append(l.records[identifier], time.Now().UTC())
	return nil
}

func (l *memLedger) Clear(ctx context.Context, identifier string) error {
	if l.fail {
		return errors.New("ledger unavailable")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, identifier)
	return nil
}

func (l *memLedger) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for id, times := range l.records {
		var kept []time.Time
		for _, at := range times {
			if at.After(cutoff) {
				kept = append(kept, at)
			} else {
				n++
			}
		}
		l.records[id] = kept
	}
	return n, nil
}

func TestLockedAtThreshold(t *testing.T) {
	ledger := newMemLedger()
	tr := NewTracker(ledger, 15*time.Minute, 5)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		tr.RecordFailure(ctx, "admin@acme.test")
	}
	if tr.Locked(ctx, "admin@acme.test") {
		t.Error("4 failures should not lock")
	}
	tr.RecordFailure(ctx, "admin@acme.test")
	if !tr.Locked(ctx, "admin@acme.test") {
		t.Error("5 failures should lock")
	}
}

func TestClearUnlocks(t *testing.T) {
	ledger := newMemLedger()
	tr := NewTracker(ledger, 15*time.Minute, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tr.RecordFailure(ctx, "admin@acme.test")
	}
	tr.Clear(ctx, "admin@acme.test")
	if tr.Locked(ctx, "admin@acme.test") {
		t.Error("cleared identifier should not be locked")
	}
	if tr.Count(ctx, "admin@acme.test") != 0 {
		t.Errorf("count after clear: want 0, got %d", tr.Count(ctx, "admin@acme.test"))
	}
}

func TestWindowExcludesOldFailures(t *testing.T) {
	ledger := newMemLedger()
	tr := NewTracker(ledger, 15*time.Minute, 5)
	ctx := context.Background()

	old := time.Now().UTC().Add(-20 * time.Minute)
	ledger.mu.Lock()
	for i := 0; i < 5; i++ {
		ledger.records["admin@acme.test"] = append(ledger.records["admin@acme.test"], old)
	}
	ledger.mu.Unlock()

	if tr.Locked(ctx, "admin@acme.test") {
		t.Error("failures outside the window must not lock")
	}
}

func TestCountFailsOpen(t *testing.T) {
	ledger := newMemLedger()
	tr := NewTracker(ledger, 15*time.Minute, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tr.RecordFailure(ctx, "admin@acme.test")
	}
	ledger.fail = true
	// An unreadable ledger degrades to zero: authentication proceeds.
	if tr.Locked(ctx, "admin@acme.test") {
		t.Error("ledger read failure must fail open")
	}
}

func TestWriteFailuresAreSwallowed(t *testing.T) {
	ledger := newMemLedger()
	ledger.fail = true
	tr := NewTracker(ledger, 15*time.Minute, 5)
	ctx := context.Background()

	// Neither call may panic or surface an error.
	tr.RecordFailure(ctx, "admin@acme.test")
	tr.Clear(ctx, "admin@acme.test")
}

func TestDefaultsApplied(t *testing.T) {
	tr := NewTracker(newMemLedger(), 0, 0)
	if tr.window != DefaultWindow {
		t.Errorf("window: want %v, got %v", DefaultWindow, tr.window)
	}
	if tr.threshold != DefaultThreshold {
		t.Errorf("threshold: want %d, got %d", DefaultThreshold, tr.threshold)
	}
}

func TestPrune(t *testing.T) {
	ledger := newMemLedger()
	tr := NewTracker(ledger, 15*time.Minute, 5)
	ctx := context.Background()

	old := time.Now().UTC().Add(-30 * time.Minute)
	ledger.mu.Lock()
	ledger.records["a@b.test"] = []time.Time{old, old}
	ledger.mu.Unlock()
	tr.RecordFailure(ctx, "a@b.test")

	n, err := tr.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned: want 2, got %d", n)
	}
	if tr.Count(ctx, "a@b.test") != 1 {
		t.Errorf("count after prune: want 1, got %d", tr.Count(ctx, "a@b.test"))
	}
}
