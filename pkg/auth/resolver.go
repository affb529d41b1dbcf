package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vetora/vetora/pkg/debug"
)

// Resolver maps an inbound request to an auth Context: it asks the
// identity provider who is calling and loads that caller's profile.
// Every failure yields the unauthenticated Context; Resolve never returns
// an error.
type Resolver struct {
	authn    Authenticator
	profiles ProfileStore
	logger   *slog.Logger
}

// NewResolver creates a resolver. logger may be nil.
func NewResolver(authn Authenticator, profiles ProfileStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{authn: authn, profiles: profiles, logger: logger}
}

// Resolve performs one identity lookup and at most one profile lookup.
// Both are read only, so repeated calls without store mutation yield equal
// contexts.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) *Context {
	result := r.authn.Authenticate(ctx, req)
	if result.Decision != Yes || result.Identity == nil {
		if result.Decision == No {
			r.logger.Warn("authentication failed",
				"path", req.URL.Path,
				"remote_addr", req.RemoteAddr,
				"error", result.Err,
			)
		}
		return unauthenticated()
	}

	identity := result.Identity
	if identity.Subject == "" {
		r.logger.Error("authenticator returned identity with empty subject")
		return unauthenticated()
	}

	rec, err := r.profiles.LookupProfile(ctx, identity.Subject)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			r.logger.Warn("no profile for authenticated identity", "subject", identity.Subject)
		} else {
			r.logger.Warn("profile lookup failed", "subject", identity.Subject, "error", err)
		}
		return unauthenticated()
	}

	profile := ProfileFromRecord(rec)
	if profile.TenantID == "" {
		r.logger.Warn("profile has no clinic", "subject", identity.Subject)
		return unauthenticated()
	}
	if profile.Email == "" {
		profile.Email = identity.Email
	}

	debug.Log("auth", "resolved caller",
		"subject", identity.Subject,
		"tenant_id", profile.TenantID,
		"role", string(profile.Role),
	)

	return &Context{
		Identity:      identity,
		Profile:       profile,
		Authenticated: true,
	}
}
