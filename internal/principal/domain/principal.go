// Package domain defines the Principal: an authenticated identity resolved
// from one of the two disjoint account stores.
package domain

import (
	"errors"
	"time"
)

// Role tags which store a principal was resolved from.
type Role string

const (
	// RoleSuperadmin is the system-wide tier; not bound to any tenant.
	RoleSuperadmin Role = "superadmin"
	// RoleAdmin is a per-organization admin account.
	RoleAdmin Role = "admin"
)

// AuthProvider records how an admin account was created.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
)

// Principal is an account from either the superadmin or the organization-admin
// store, tagged with its role. TenantID is empty for superadmins;
// PasswordHash is empty for federation-only accounts.
type Principal struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	TenantID     string
	PictureURL   string
	Provider     AuthProvider
	Active       bool
	LastLogin    *time.Time
	CreatedAt    time.Time
}

// Validate checks structural invariants before persistence.
func (p *Principal) Validate() error {
	if p.ID == "" {
		return errors.New("principal: id is required")
	}
	if p.Email == "" {
		return errors.New("principal: email is required")
	}
	switch p.Role {
	case RoleSuperadmin:
		if p.TenantID != "" {
			return errors.New("principal: superadmin must not carry a tenant binding")
		}
	case RoleAdmin:
	default:
		return errors.New("principal: unknown role")
	}
	return nil
}

// HasPassword reports whether the account can authenticate with a password.
func (p *Principal) HasPassword() bool {
	return p.PasswordHash != ""
}
