package auth

import (
	"slices"

	"github.com/vetora/vetora/pkg/api"
)

// Policy declares who may call a handler. It is declared once per route or
// action and never mutated; route adapters fill TenantID on a copy.
type Policy struct {
	// Roles lists the allowed roles. Empty allows any role.
	Roles []api.Role

	// RequireTenant rejects callers whose clinic differs from TenantID.
	// An empty TenantID disables the check.
	RequireTenant bool
	TenantID      string

	// RequireActive rejects deactivated profiles.
	RequireActive bool

	// RateLimitType selects a limit. Empty disables rate limiting.
	RateLimitType string
}

// Check evaluates the policy against an auth context. Checks run in a
// fixed order and stop at the first failure: authentication, active
// account, role, tenant.
func (p Policy) Check(ac *Context) *api.APIError {
	if ac == nil || !ac.Authenticated || ac.Profile == nil {
		return api.NewUnauthorizedError()
	}

	if p.RequireActive && !ac.Profile.IsActive {
		return api.NewAccountInactiveError()
	}

	if len(p.Roles) > 0 && !slices.Contains(p.Roles, ac.Profile.Role) {
		return api.NewInsufficientRoleError(p.Roles)
	}

	if p.RequireTenant && p.TenantID != "" && ac.Profile.TenantID != p.TenantID {
		return api.NewTenantMismatchError()
	}

	return nil
}

// Common policies.
var (
	// Authenticated admits any resolved caller.
	Authenticated = Policy{}

	// Staff admits active vets and admins.
	Staff = Policy{Roles: api.StaffRoles, RequireActive: true}

	// Admin admits active clinic administrators.
	Admin = Policy{Roles: []api.Role{api.RoleAdmin}, RequireActive: true}
)

// WithTenant returns a copy of p requiring the given clinic.
func (p Policy) WithTenant(tenantID string) Policy {
	p.RequireTenant = true
	p.TenantID = tenantID
	return p
}

// WithRateLimit returns a copy of p with the given limit type.
func (p Policy) WithRateLimit(limitType string) Policy {
	p.RateLimitType = limitType
	return p
}
