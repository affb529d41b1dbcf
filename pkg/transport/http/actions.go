package http

import (
	"context"
	"net/http"

	"github.com/vetora/vetora/pkg/api"
	"github.com/vetora/vetora/pkg/auth"
	"github.com/vetora/vetora/pkg/transport"
)

// handleAction handles POST /api/actions/{name}. The caller is
// authenticated before the action is looked up or its body parsed. Actions
// then answer with an ActionResult and status 200; failures carry their
// precise code in the result.
func (a *Adapter) handleAction(w http.ResponseWriter, r *http.Request) {
	ac, apiErr := a.gate.ValidateAuth(r.Context(), r, auth.Authenticated)
	if apiErr != nil {
		transport.WriteError(w, apiErr)
		return
	}
	r = r.WithContext(auth.NewContext(r.Context(), ac))

	name := r.PathValue("name")
	h, ok := a.actions[name]
	if !ok {
		transport.WriteError(w, api.NewNotFoundError("action", name))
		return
	}
	h(w, r)
}

// actionEndpoint decodes the arguments of an action and writes its result.
func actionEndpoint[A, T any](a *Adapter, run func(*http.Request, A) auth.ActionResult[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var args A
		if apiErr := a.decodeJSON(w, r, &args); apiErr != nil {
			transport.WriteError(w, apiErr)
			return
		}
		transport.WriteJSON(w, http.StatusOK, run(r, args))
	}
}

func (a *Adapter) setKennelStatus(ctx context.Context, az *auth.Authorized, args api.KennelStatusRequest) (*api.Kennel, error) {
	return a.svc.SetKennelStatus(ctx, az.Scope, args.KennelID, args.Status)
}

func (a *Adapter) discharge(ctx context.Context, az *auth.Authorized, args api.DischargeAction) (*api.Hospitalization, error) {
	return a.svc.Discharge(ctx, az.Scope, az.Profile, args.HospitalizationID, &args.DischargeRequest)
}
