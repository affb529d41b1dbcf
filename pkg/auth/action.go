package auth

import (
	"context"
	"net/http"

	"github.com/vetora/vetora/pkg/api"
)

// ActionResult is the typed outcome of an action. Failures carry the
// precise error code.
type ActionResult[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    api.ErrorCode  `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// TenantScoped is implemented by action arguments that target a clinic.
type TenantScoped interface {
	ScopeTenantID() string
}

// ActionFunc is an action-style handler taking typed arguments.
type ActionFunc[A, T any] func(ctx context.Context, az *Authorized, args A) (T, error)

// Action adapts an ActionFunc to the gate. The request carries the caller's
// credentials; the targeted clinic comes from args when they implement
// TenantScoped. The returned function never panics.
func Action[A, T any](g *Gate, p Policy, name string, fn ActionFunc[A, T]) func(r *http.Request, args A) ActionResult[T] {
	return func(r *http.Request, args A) ActionResult[T] {
		policy := p
		if ts, ok := any(args).(TenantScoped); ok {
			if tenant := ts.ScopeTenantID(); tenant != "" {
				policy = p.WithTenant(tenant)
			}
		}

		var data T
		apiErr := g.run(r.Context(), r, policy, "action "+name, func(ctx context.Context, az *Authorized) error {
			out, err := fn(ctx, az, args)
			if err != nil {
				return err
			}
			data = out
			return nil
		})
		if apiErr != nil {
			return ActionResult[T]{
				Error:   apiErr.Message,
				Code:    apiErr.Code,
				Details: apiErr.Details,
			}
		}
		return ActionResult[T]{Success: true, Data: data}
	}
}
