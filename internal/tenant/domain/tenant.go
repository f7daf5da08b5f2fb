package domain

import "time"

// SystemTenantID is the sentinel tenant bound to superadmin principals.
// It resolves without a store lookup.
const SystemTenantID = "system"

// Status is the lifecycle state of a tenant.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Tenant is an isolated organization with its own physical data store
// (stored in organizations). DBName is the store handle the resolver connects
// through.
type Tenant struct {
	ID        string
	Name      string
	DBName    string
	Status    Status
	Plan      string
	Modules   []string
	CreatedBy string
	CreatedAt time.Time
}

// Active reports whether the tenant may serve requests.
func (t *Tenant) Active() bool {
	return t.Status == StatusActive
}

// System returns the implicit superadmin pseudo-tenant. It is never
// persisted and always active.
func System() *Tenant {
	return &Tenant{
		ID:      SystemTenantID,
		Name:    "System Administration",
		DBName:  SystemTenantID,
		Status:  StatusActive,
		Plan:    "unlimited",
		Modules: []string{"all"},
	}
}
