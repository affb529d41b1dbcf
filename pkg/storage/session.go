package storage

import "context"

// Session carries the tenant and role that row-level security policies
// evaluate for the current request.
type Session struct {
	TenantID string
	Role     string
}

// sessionKey is a private type for the session context key.
type sessionKey struct{}

// WithSession stores the session in the context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, &s)
}

// WithoutSession masks any session set by a parent context. Ownership
// checks use it to see rows of every tenant.
func WithoutSession(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionKey{}, (*Session)(nil))
}

// SessionFromContext returns the session and whether one is set.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok && s != nil {
		return *s, true
	}
	return Session{}, false
}

// GetTenant returns the session tenant, or "" when no session is set.
func GetTenant(ctx context.Context) string {
	s, _ := SessionFromContext(ctx)
	return s.TenantID
}

// ApplySession propagates tenant and role to the backend once per request.
// Backends without row-level security get the session stored in the context
// only.
func ApplySession(ctx context.Context, b Backend, tenantID, role string) (context.Context, error) {
	if setter, ok := b.(SessionContextSetter); ok {
		return setter.SetSessionContext(ctx, tenantID, role)
	}
	return WithSession(ctx, Session{TenantID: tenantID, Role: role}), nil
}
