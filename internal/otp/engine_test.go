package otp

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"tenant-auth-engine/internal/otp/domain"
)

type memRepo struct {
	mu sync.Mutex
	m  map[string]*domain.Challenge
}

func newMemRepo() *memRepo {
	return &memRepo{m: make(map[string]*domain.Challenge)}
}

func (r *memRepo) Create(ctx context.Context, c *domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c2 := *c
	r.m[c.ID] = &c2
	return nil
}

func (r *memRepo) NewestLive(ctx context.Context, identifier string, now time.Time) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *domain.Challenge
	for _, c := range r.m {
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

func (r *memRepo) Consume(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[id]
	if !ok || c.Used {
		return false, nil
	}
	c.Used = true
	return true, nil
}

func (r *memRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.m {
		if c.ExpiresAt.Before(cutoff) {
			delete(r.m, id)
			n++
		}
	}
	return n, nil
}

type allowAllDirectory struct{}

func (allowAllDirectory) IdentifierExists(ctx context.Context, identifier string) (bool, error) {
	return true, nil
}

type denyAllDirectory struct{}

func (denyAllDirectory) IdentifierExists(ctx context.Context, identifier string) (bool, error) {
	return false, nil
}

func TestIssueAndVerify(t *testing.T) {
	repo := newMemRepo()
	e := NewEngine(repo, allowAllDirectory{}, 10*time.Minute)
	ctx := context.Background()

	c, code, err := e.Issue(ctx, "admin@acme.test")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("code length: want 6, got %q", code)
	}
	if c.CodeHash == code {
		t.Error("plaintext code must not be persisted")
	}
	if err := e.Verify(ctx, "admin@acme.test", code); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestIssueUnknownIdentifier(t *testing.T) {
	e := NewEngine(newMemRepo(), denyAllDirectory{}, 10*time.Minute)
	if _, _, err := e.Issue(context.Background(), "ghost@acme.test"); !errors.Is(err, ErrUnknownIdentifier) {
		t.Errorf("want ErrUnknownIdentifier, got %v", err)
	}
}

func TestVerifySingleUse(t *testing.T) {
	repo := newMemRepo()
	e := NewEngine(repo, allowAllDirectory{}, 10*time.Minute)
	ctx := context.Background()

	_, code, err := e.Issue(ctx, "admin@acme.test")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := e.Verify(ctx, "admin@acme.test", code); err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	if err := e.Verify(ctx, "admin@acme.test", code); err == nil {
		t.Error("replay should fail")
	}
}

func TestVerifyNoChallenge(t *testing.T) {
	e := NewEngine(newMemRepo(), allowAllDirectory{}, 10*time.Minute)
	if err := e.Verify(context.Background(), "admin@acme.test", "123456"); !errors.Is(err, ErrNoChallenge) {
		t.Errorf("want ErrNoChallenge, got %v", err)
	}
}

func TestVerifyWrongCode(t *testing.T) {
	repo := newMemRepo()
	e := NewEngine(repo, allowAllDirectory{}, 10*time.Minute)
	ctx := context.Background()

	_, code, err := e.Issue(ctx, "admin@acme.test")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	if err := e.Verify(ctx, "admin@acme.test", wrong); !errors.Is(err, ErrCodeMismatch) {
		t.Errorf("want ErrCodeMismatch, got %v", err)
	}
	// The live challenge survives a mismatch; the right code still works.
	if err := e.Verify(ctx, "admin@acme.test", code); err != nil {
		t.Fatalf("Verify after mismatch: %v", err)
	}
}

func TestVerifyExpiredChallenge(t *testing.T) {
	repo := newMemRepo()
	e := NewEngine(repo, allowAllDirectory{}, 10*time.Minute)
	ctx := context.Background()

	base := time.Now().UTC()
	e.now = func() time.Time { return base }
	_, code, err := e.Issue(ctx, "admin@acme.test")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	e.now = func() time.Time { return base.Add(11 * time.Minute) }
	if err := e.Verify(ctx, "admin@acme.test", code); !errors.Is(err, ErrNoChallenge) {
		t.Errorf("expired code: want ErrNoChallenge, got %v", err)
	}
}

func TestVerifyOnlyNewestChallenge(t *testing.T) {
	repo := newMemRepo()
	e := NewEngine(repo, allowAllDirectory{}, 10*time.Minute)
	ctx := context.Background()

	base := time.Now().UTC()
	e.now = func() time.Time { return base }
	_, first, err := e.Issue(ctx, "admin@acme.test")
	if err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	e.now = func() time.Time { return base.Add(time.Second) }
	_, second, err := e.Issue(ctx, "admin@acme.test")
	if err != nil {
		t.Fatalf("second Issue: %v", err)
	}
	if first == second {
		t.Skip("generated codes collided")
	}

	if err := e.Verify(ctx, "admin@acme.test", first); err == nil {
		t.Error("older code should not verify")
	}
	if err := e.Verify(ctx, "admin@acme.test", second); err != nil {
		t.Fatalf("newest code: %v", err)
	}
}

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("length: want 6, got %q", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("non-numeric code %q", code)
		}
		if n < 100000 || n > 999999 {
			t.Fatalf("out of range: %d", n)
		}
	}
}

func TestCodeEqualConstantTimeContract(t *testing.T) {
	hash := HashCode("123456")
	if !CodeEqual("123456", hash) {
		t.Error("matching code should compare equal")
	}
	if CodeEqual("654321", hash) {
		t.Error("different code should not compare equal")
	}
	if CodeEqual("", hash) {
		t.Error("empty code should not compare equal")
	}
}
