package repository

import (
	"context"

	"tenant-auth-engine/internal/principal/domain"
)

// Repository resolves principals across the two disjoint account stores.
// Lookup order is significant: an email present in both stores always
// resolves to the superadmin record.
type Repository interface {
	// FindByEmail returns the principal for email, checking the superadmin
	// store first and then organization admins, or nil if neither matches.
	FindByEmail(ctx context.Context, email string) (*domain.Principal, error)
	// GetByID returns the principal for id within the store selected by role,
	// or nil if not found.
	GetByID(ctx context.Context, id string, role domain.Role) (*domain.Principal, error)
	// TouchLastLogin sets the last-authenticated timestamp on the principal's row.
	TouchLastLogin(ctx context.Context, id string, role domain.Role) error
}
