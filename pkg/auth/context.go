package auth

import (
	"context"

	"github.com/vetora/vetora/pkg/api"
)

// Context is the request-scoped authentication state. An authenticated
// Context always carries an identity and a profile with a non-empty
// tenant; an unauthenticated one carries neither.
type Context struct {
	Identity      *Identity
	Profile       *api.Profile
	Authenticated bool
}

// unauthenticated returns the fail-closed variant.
func unauthenticated() *Context {
	return &Context{}
}

// TenantID returns the caller's tenant, or "" when unauthenticated.
func (c *Context) TenantID() string {
	if c == nil || c.Profile == nil {
		return ""
	}
	return c.Profile.TenantID
}

// Role returns the caller's role, or "" when unauthenticated.
func (c *Context) Role() api.Role {
	if c == nil || c.Profile == nil {
		return ""
	}
	return c.Profile.Role
}

// contextKey is a private type for the auth context key.
type contextKey struct{}

// NewContext stores the auth context in ctx.
func NewContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext retrieves the auth context stored by the gate.
// Returns nil if none is set.
func FromContext(ctx context.Context) *Context {
	if v, ok := ctx.Value(contextKey{}).(*Context); ok {
		return v
	}
	return nil
}
