// Package tenant maps organization identifiers to tenant metadata and their
// physical data-store handles.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	principaldomain "tenant-auth-engine/internal/principal/domain"
	"tenant-auth-engine/internal/tenant/domain"
	"tenant-auth-engine/internal/tenant/repository"
)

// ErrTenantNotFound is returned when no tenant exists for an id.
var ErrTenantNotFound = errors.New("tenant not found")

// Resolver resolves tenant metadata and owns the per-tenant connection-pool
// cache. Pools are created on first resolve and retained for the process
// lifetime; the cache is the only shared mutable state and is guarded by a
// mutex with insert-if-absent semantics.
type Resolver struct {
	repo    repository.Repository
	baseDSN string

	mu    sync.Mutex
	pools map[string]*pgxpool.Pool
}

// NewResolver returns a Resolver over repo. baseDSN is the Postgres DSN whose
// database name is swapped for each tenant's store handle.
func NewResolver(repo repository.Repository, baseDSN string) *Resolver {
	return &Resolver{
		repo:    repo,
		baseDSN: baseDSN,
		pools:   make(map[string]*pgxpool.Pool),
	}
}

// Resolve returns tenant metadata for tenantID. The sentinel "system" id
// resolves to the implicit superadmin pseudo-tenant without a store lookup.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	if tenantID == domain.SystemTenantID {
		return domain.System(), nil
	}
	t, err := r.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTenantNotFound
	}
	return t, nil
}

// ProvisionFederatedAdmin creates a federation-only admin with a default
// tenant on first federated login. Delegates to the repository's single
// transaction.
func (r *Resolver) ProvisionFederatedAdmin(ctx context.Context, email, name, pictureURL string) (*principaldomain.Principal, *domain.Tenant, error) {
	return r.repo.ProvisionFederatedAdmin(ctx, email, name, pictureURL)
}

// IsActive reports whether tenantID resolves to an active tenant. Used by
// request-level tenant-status gates.
func (r *Resolver) IsActive(ctx context.Context, tenantID string) (bool, error) {
	t, err := r.Resolve(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return false, nil
		}
		return false, err
	}
	return t.Active(), nil
}

// Store returns the connection pool for the tenant's physical store, creating
// and caching it on first use. The system pseudo-tenant has no store of its
// own and returns an error.
func (r *Resolver) Store(ctx context.Context, t *domain.Tenant) (*pgxpool.Pool, error) {
	if t.ID == domain.SystemTenantID {
		return nil, errors.New("tenant: system pseudo-tenant has no dedicated store")
	}

	r.mu.Lock()
	if pool, ok := r.pools[t.DBName]; ok {
		r.mu.Unlock()
		return pool, nil
	}
	r.mu.Unlock()

	cfg, err := pgxpool.ParseConfig(r.baseDSN)
	if err != nil {
		return nil, fmt.Errorf("tenant: parse base dsn: %w", err)
	}
	cfg.ConnConfig.Database = t.DBName
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("tenant: connect store %s: %w", t.DBName, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.pools[t.DBName]; ok {
		// Lost the insert race; keep the first pool.
		pool.Close()
		return existing, nil
	}
	r.pools[t.DBName] = pool
	return pool, nil
}

// Close closes every cached tenant pool.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pool := range r.pools {
		pool.Close()
	}
	r.pools = make(map[string]*pgxpool.Pool)
}
