// Package noop provides a development authenticator that treats every
// request as coming from one configured subject. It must not be used in
// production.
package noop

import (
	"context"
	"net/http"

	"github.com/vetora/vetora/pkg/auth"
)

// Authenticator returns Yes with the configured subject. An empty subject
// abstains.
type Authenticator struct {
	Subject string
}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.AuthResult {
	if a.Subject == "" {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: a.Subject},
	}
}
