package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vetora/vetora/pkg/api"
	"github.com/vetora/vetora/pkg/observability"
	"github.com/vetora/vetora/pkg/storage"
)

// ProfilesCollection is the storage collection holding profiles.
const ProfilesCollection = "profiles"

// ErrProfileNotFound is returned by a ProfileStore for unknown ids.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileStore looks up the profile row of an identity. It returns
// ErrProfileNotFound when no row exists.
type ProfileStore interface {
	LookupProfile(ctx context.Context, id string) (storage.Record, error)
}

// BackendProfiles is a ProfileStore over a storage backend. Profiles are
// read across tenants since the tenant is what the lookup discovers.
type BackendProfiles struct {
	backend storage.Backend
}

// NewBackendProfiles creates a profile store over backend.
func NewBackendProfiles(backend storage.Backend) *BackendProfiles {
	return &BackendProfiles{backend: backend}
}

// LookupProfile loads the row with the given id.
func (p *BackendProfiles) LookupProfile(ctx context.Context, id string) (storage.Record, error) {
	recs, err := p.backend.Find(storage.WithoutSession(ctx), storage.Query{
		Collection: ProfilesCollection,
		Filters:    []storage.Filter{{Field: "id", Op: storage.OpEq, Value: id}},
		Limit:      2,
	})
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	switch len(recs) {
	case 0:
		return nil, ErrProfileNotFound
	case 1:
		return recs[0], nil
	default:
		return nil, fmt.Errorf("loading profile %s: multiple rows", id)
	}
}

// ProfileFromRecord converts a storage row into a Profile. Unknown roles
// are treated as owner, the least privileged role, and reported through a
// warning and the role coercion metric. A missing is_active column counts
// as active.
func ProfileFromRecord(rec storage.Record) *api.Profile {
	p := &api.Profile{
		ID:        rec.String("id"),
		TenantID:  rec.String(storage.TenantColumn),
		Role:      api.Role(rec.String("role")),
		FullName:  rec.String("full_name"),
		Email:     rec.String("email"),
		Phone:     rec.String("phone"),
		AvatarURL: rec.String("avatar_url"),
		IsActive:  rec.Bool("is_active", true),
		CreatedAt: rec.Time("created_at"),
		UpdatedAt: rec.Time("updated_at"),
	}

	if !p.Role.Valid() {
		slog.Warn("unrecognized profile role, treating as owner",
			"profile_id", p.ID,
			"role", string(p.Role),
		)
		observability.RoleCoercionsTotal.Inc()
		p.Role = api.RoleOwner
	}

	return p
}
