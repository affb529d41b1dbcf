package hospitalization

import (
	"context"
	"fmt"

	"github.com/vetora/vetora/pkg/api"
	"github.com/vetora/vetora/pkg/storage"
)

// Get returns one hospitalization of the caller's clinic.
func (s *Service) Get(ctx context.Context, scope *storage.Scope, id string) (*api.Hospitalization, error) {
	if !api.ValidateID(id) {
		return nil, api.NewInvalidFormatError("id", "hospitalization id must be a UUID")
	}
	if err := owned(ctx, scope, HospitalizationsCollection, "hospitalization", id); err != nil {
		return nil, err
	}
	rec, err := load(ctx, scope, HospitalizationsCollection, "hospitalization", id)
	if err != nil {
		return nil, err
	}
	return hospitalizationFromRecord(rec), nil
}

// List returns the clinic's hospitalizations, most recent admission
// first, optionally filtered by status.
func (s *Service) List(ctx context.Context, scope *storage.Scope, status string) ([]*api.Hospitalization, error) {
	q := scope.Select(HospitalizationsCollection).OrderBy("admitted_at", true)
	if status != "" {
		switch api.HospitalizationStatus(status) {
		case api.HospitalizationActive, api.HospitalizationDischarged,
			api.HospitalizationDeceased, api.HospitalizationTransferred:
		default:
			return nil, api.NewInvalidFormatError("status", fmt.Sprintf("unknown hospitalization status %q", status))
		}
		q.Eq("status", status)
	}

	recs, err := q.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing hospitalizations: %w", err)
	}
	out := make([]*api.Hospitalization, 0, len(recs))
	for _, rec := range recs {
		out = append(out, hospitalizationFromRecord(rec))
	}
	return out, nil
}
