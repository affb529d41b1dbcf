package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/vetora/vetora/pkg/api"
	"github.com/vetora/vetora/pkg/observability"
	"github.com/vetora/vetora/pkg/storage"
	"github.com/vetora/vetora/pkg/transport"
)

// DefaultTenantParam is the path value route adapters read the targeted
// clinic from.
const DefaultTenantParam = "clinic"

// Gate authorizes calls to handlers. A call is resolved, checked against
// a Policy, optionally rate limited, and then run with a tenant scope.
// Handler errors and panics never escape: they become typed failures.
type Gate struct {
	resolver    *Resolver
	backend     storage.Backend
	limiter     RateLimiter
	logger      *slog.Logger
	tenantParam string
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithRateLimiter sets the limiter consulted for policies with a
// RateLimitType.
func WithRateLimiter(l RateLimiter) GateOption {
	return func(g *Gate) { g.limiter = l }
}

// WithLogger sets the logger for handler failures.
func WithLogger(l *slog.Logger) GateOption {
	return func(g *Gate) { g.logger = l }
}

// WithTenantParam sets the path value holding the targeted clinic.
func WithTenantParam(name string) GateOption {
	return func(g *Gate) { g.tenantParam = name }
}

// NewGate creates a gate. backend is the store handed to handlers through
// tenant scopes.
func NewGate(resolver *Resolver, backend storage.Backend, opts ...GateOption) *Gate {
	g := &Gate{
		resolver:    resolver,
		backend:     backend,
		logger:      slog.Default(),
		tenantParam: DefaultTenantParam,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorized is what a handler receives after the gate admitted a call.
type Authorized struct {
	*Context

	// Scope is bound to the caller's clinic.
	Scope *storage.Scope
}

// ValidateAuth resolves the caller and evaluates the policy. A caller
// already resolved earlier in the request is reused. The context is
// returned even on failure for logging.
func (g *Gate) ValidateAuth(ctx context.Context, r *http.Request, p Policy) (*Context, *api.APIError) {
	ac := FromContext(ctx)
	if ac == nil || !ac.Authenticated {
		ac = g.resolver.Resolve(ctx, r)
	}
	if apiErr := p.Check(ac); apiErr != nil {
		return ac, apiErr
	}
	return ac, nil
}

// run is the pipeline shared by both adapters: validate, rate limit,
// propagate the storage session, then invoke the handler.
func (g *Gate) run(ctx context.Context, r *http.Request, p Policy, call string, fn func(ctx context.Context, az *Authorized) error) *api.APIError {
	ac, apiErr := g.ValidateAuth(ctx, r, p)
	if apiErr != nil {
		observability.AuthDecisionsTotal.WithLabelValues(string(apiErr.Code)).Inc()
		g.logger.Debug("authorization denied",
			"call", call,
			"code", string(apiErr.Code),
			"subject", subjectOf(ac),
		)
		return apiErr
	}
	observability.AuthDecisionsTotal.WithLabelValues("allowed").Inc()

	if p.RateLimitType != "" && g.limiter != nil {
		decision, err := g.limiter.Check(ctx, r, p.RateLimitType, ac.Profile.ID)
		switch {
		case err != nil:
			g.logger.Warn("rate limiter unavailable, allowing request",
				"limit_type", p.RateLimitType,
				"error", err,
			)
		case !decision.Allowed:
			observability.RateLimitRejectedTotal.WithLabelValues(p.RateLimitType).Inc()
			g.logger.Warn("rate limit exceeded",
				"subject", ac.Profile.ID,
				"limit_type", p.RateLimitType,
			)
			return api.NewRateLimitedError(p.RateLimitType, decision.RetryAfter)
		}
	}

	sessCtx, err := storage.ApplySession(ctx, g.backend, ac.Profile.TenantID, string(ac.Profile.Role))
	if err != nil {
		g.logger.Warn("setting storage session context failed", "error", err)
	} else {
		ctx = sessCtx
	}
	ctx = NewContext(ctx, ac)

	az := &Authorized{
		Context: ac,
		Scope:   storage.NewScope(g.backend, ac.Profile.TenantID),
	}
	return g.invoke(call, func() error { return fn(ctx, az) })
}

// invoke runs fn, converting panics and untyped errors into SERVER_ERROR.
// The cause is logged and never returned.
func (g *Gate) invoke(call string, fn func() error) (apiErr *api.APIError) {
	defer func() {
		if p := recover(); p != nil {
			g.logger.Error("handler panic",
				"call", call,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			apiErr = api.NewServerError()
		}
	}()

	err := fn()
	if err == nil {
		return nil
	}

	var typed *api.APIError
	if errors.As(err, &typed) {
		return typed
	}
	g.logger.Error("handler failed", "call", call, "error", err)
	return api.NewServerError()
}

// RouteHandler is a request/response handler behind the gate. It writes
// the response on success and returns an error otherwise; the gate writes
// the error response.
type RouteHandler func(w http.ResponseWriter, r *http.Request, az *Authorized) error

// Route adapts a RouteHandler to http.Handler. When the route pattern has
// the tenant path value, the policy requires that clinic.
func (g *Gate) Route(p Policy, h RouteHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		policy := p
		if tenant := r.PathValue(g.tenantParam); tenant != "" {
			policy = p.WithTenant(tenant)
		}

		call := r.Method + " " + r.URL.Path
		apiErr := g.run(r.Context(), r, policy, call, func(ctx context.Context, az *Authorized) error {
			return h(w, r.WithContext(ctx), az)
		})
		if apiErr != nil {
			transport.WriteError(w, apiErr)
		}
	})
}

func subjectOf(ac *Context) string {
	if ac == nil || ac.Identity == nil {
		return ""
	}
	return ac.Identity.Subject
}
