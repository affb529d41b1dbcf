package hospitalization

import (
	"context"
	"errors"
	"fmt"

	"github.com/vetora/vetora/pkg/api"
	"github.com/vetora/vetora/pkg/storage"
)

// ListKennels returns the clinic's kennels ordered by code, optionally
// filtered by status.
func (s *Service) ListKennels(ctx context.Context, scope *storage.Scope, status string) ([]*api.Kennel, error) {
	q := scope.Select(KennelsCollection).OrderBy("code", false)
	if status != "" {
		switch api.KennelStatus(status) {
		case api.KennelAvailable, api.KennelOccupied, api.KennelMaintenance, api.KennelReserved:
		default:
			return nil, api.NewInvalidFormatError("status", fmt.Sprintf("unknown kennel status %q", status))
		}
		q.Eq("status", status)
	}

	recs, err := q.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing kennels: %w", err)
	}
	out := make([]*api.Kennel, 0, len(recs))
	for _, rec := range recs {
		out = append(out, kennelFromRecord(rec))
	}
	return out, nil
}

// CreateKennel adds an available kennel. Codes are unique per clinic.
func (s *Service) CreateKennel(ctx context.Context, scope *storage.Scope, req *api.KennelRequest) (*api.Kennel, error) {
	if apiErr := api.ValidateKennel(req); apiErr != nil {
		return nil, apiErr
	}

	now := s.now().UTC()
	rec := storage.Record{
		"id":         api.NewID(),
		"name":       req.Name,
		"code":       req.Code,
		"status":     string(api.KennelAvailable),
		"daily_rate": req.DailyRate,
		"created_at": now,
		"updated_at": now,
	}
	setIf(rec, "size", req.Size)
	setIf(rec, "notes", req.Notes)

	err := scope.Insert(KennelsCollection, rec).Exec(ctx)
	if errors.Is(err, storage.ErrConflict) {
		return nil, api.NewConflictError(api.ReasonKennelCodeTaken,
			fmt.Sprintf("kennel code %q is already in use", req.Code), false)
	}
	if err != nil {
		return nil, fmt.Errorf("creating kennel: %w", err)
	}
	rec[storage.TenantColumn] = scope.TenantID()

	s.logger.Info("kennel created", "tenant_id", scope.TenantID(), "kennel_id", rec["id"], "code", req.Code)
	return kennelFromRecord(rec), nil
}

// SetKennelStatus changes a kennel's status by hand. Occupied kennels are
// released only by discharge.
func (s *Service) SetKennelStatus(ctx context.Context, scope *storage.Scope, kennelID, status string) (*api.Kennel, error) {
	if kennelID == "" || status == "" {
		var missing []string
		if kennelID == "" {
			missing = append(missing, "kennel_id")
		}
		if status == "" {
			missing = append(missing, "status")
		}
		return nil, api.NewMissingFieldsError(missing...)
	}
	if !api.ValidateID(kennelID) {
		return nil, api.NewInvalidFormatError("kennel_id", "kennel_id must be a UUID")
	}

	if err := owned(ctx, scope, KennelsCollection, "kennel", kennelID); err != nil {
		return nil, err
	}
	rec, err := load(ctx, scope, KennelsCollection, "kennel", kennelID)
	if err != nil {
		return nil, err
	}

	from := api.KennelStatus(rec.String("status"))
	to := api.KennelStatus(status)
	if apiErr := api.ValidateKennelTransition(from, to); apiErr != nil {
		return nil, apiErr
	}
	if from == to {
		return kennelFromRecord(rec), nil
	}

	now := s.now().UTC()
	n, err := scope.Update(KennelsCollection).
		Eq("id", kennelID).
		Eq("status", string(from)).
		Set("status", string(to)).
		Set("updated_at", now).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("updating kennel status: %w", err)
	}
	if n == 0 {
		return nil, api.NewConflictError(api.ReasonKennelNotAvailable,
			"kennel status changed concurrently", true)
	}

	s.logger.Info("kennel status changed",
		"tenant_id", scope.TenantID(),
		"kennel_id", kennelID,
		"from", string(from),
		"to", string(to),
	)
	rec["status"] = string(to)
	rec["updated_at"] = now
	return kennelFromRecord(rec), nil
}
