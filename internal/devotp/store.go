// Package devotp holds issued OTPs in memory for dev-only retrieval
// (GET /api/dev/otp), used when dev OTP mode is enabled instead of mail.
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store keeps the plain OTP per identifier until its expiry. Not used in
// production; config refuses to enable it there.
type Store interface {
	// Put stores code for identifier until expiresAt, replacing any prior code.
	Put(ctx context.Context, identifier, code string, expiresAt time.Time)
	// Get returns the code for identifier if present and not expired.
	Get(ctx context.Context, identifier string) (code string, ok bool)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores code for identifier until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, identifier, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[identifier] = entry{code: code, expiresAt: expiresAt}
}

// Get returns the code for identifier if present and not expired. Expired
// entries are dropped on read.
func (s *MemoryStore) Get(ctx context.Context, identifier string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[identifier]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !s.nowF().Before(e.expiresAt) {
		s.mu.Lock()
		delete(s.m, identifier)
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}
