// Package engine decides module access for authenticated principals using
// OPA Rego policies.
package engine

import "context"

// AccessInput is the decision input for one module-access check.
type AccessInput struct {
	// Role of the caller: superadmin or admin.
	Role string
	// TenantStatus is the resolved tenant's lifecycle state ("active", ...).
	TenantStatus string
	// Plan is the tenant's subscription plan.
	Plan string
	// EnabledModules is the tenant's enabled module set; "all" enables everything.
	EnabledModules []string
	// Module is the business module being requested (e.g. "banking").
	Module string
}

// Evaluator decides whether a request may reach a business module.
type Evaluator interface {
	// Allow returns true when the caller may access the requested module.
	Allow(ctx context.Context, in AccessInput) (bool, error)
	// HealthCheck verifies the policy engine can compile and evaluate its policy.
	HealthCheck(ctx context.Context) error
}
