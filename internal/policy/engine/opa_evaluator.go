package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const moduleAccessQuery = "data.tenantauth.module_access.allow"

// Module-access policy: superadmins pass unconditionally; tenant admins need
// an active tenant and the requested module enabled (or the "all" marker).
const moduleAccessPolicy = `package tenantauth.module_access

default allow = false

allow if {
	input.role == "superadmin"
}

allow if {
	input.role == "admin"
	input.tenant_status == "active"
	module_enabled
}

module_enabled if {
	some m in input.enabled_modules
	m == input.module
}

module_enabled if {
	some m in input.enabled_modules
	m == "all"
}
`

// OPAEvaluator evaluates module access with an in-process OPA Rego engine.
// The policy is compiled once at construction.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the module-access policy and returns the evaluator.
func NewOPAEvaluator(ctx context.Context) (*OPAEvaluator, error) {
	compiler, err := ast.CompileModules(map[string]string{
		"module_access.rego": moduleAccessPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("compile module-access policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(moduleAccessQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare module-access query: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// Allow evaluates the policy for in. A missing or non-boolean result denies.
func (e *OPAEvaluator) Allow(ctx context.Context, in AccessInput) (bool, error) {
	modules := in.EnabledModules
	if modules == nil {
		modules = []string{}
	}
	input := map[string]interface{}{
		"role":            in.Role,
		"tenant_status":   in.TenantStatus,
		"plan":            in.Plan,
		"enabled_modules": modules,
		"module":          in.Module,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval module-access policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, nil
	}
	return allowed, nil
}

// HealthCheck evaluates the policy with a minimal input to verify the engine.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.Allow(ctx, AccessInput{
		Role:           "admin",
		TenantStatus:   "active",
		Plan:           "free",
		EnabledModules: []string{"basic"},
		Module:         "basic",
	})
	return err
}
