package repository

import (
	"context"

	principaldomain "tenant-auth-engine/internal/principal/domain"
	"tenant-auth-engine/internal/tenant/domain"
)

// Repository defines persistence for tenants and first-login provisioning.
type Repository interface {
	// GetByID returns the tenant for id, or nil if not found. The sentinel
	// system tenant is the resolver's concern, not the repository's.
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	// Create persists the tenant. The tenant must have ID and DBName set.
	Create(ctx context.Context, t *domain.Tenant) error
	// ProvisionFederatedAdmin creates a federation-only admin principal, a
	// default tenant, and the principal→tenant binding in one transaction.
	// No partial principal or tenant is ever visible to concurrent requests.
	ProvisionFederatedAdmin(ctx context.Context, email, name, pictureURL string) (*principaldomain.Principal, *domain.Tenant, error)
}
