package hospitalization

import (
	"context"
	"fmt"
	"time"

	"github.com/vetora/vetora/pkg/api"
	"github.com/vetora/vetora/pkg/observability"
	"github.com/vetora/vetora/pkg/storage"
)

// Discharge closes an active hospitalization with a terminal status and
// releases its kennel. Both writes succeed or fail together.
func (s *Service) Discharge(ctx context.Context, scope *storage.Scope, caller *api.Profile, id string, req *api.DischargeRequest) (*api.Hospitalization, error) {
	if apiErr := api.ValidateDischarge(id, req); apiErr != nil {
		return nil, apiErr
	}

	if err := owned(ctx, scope, HospitalizationsCollection, "hospitalization", id); err != nil {
		return nil, err
	}
	rec, err := load(ctx, scope, HospitalizationsCollection, "hospitalization", id)
	if err != nil {
		return nil, err
	}
	if err := owned(ctx, scope, PetsCollection, "pet", rec.String("pet_id")); err != nil {
		return nil, err
	}

	target := api.HospitalizationStatus(req.Status)
	current := api.HospitalizationStatus(rec.String("status"))
	if apiErr := api.ValidateHospitalizationTransition(current, target); apiErr != nil {
		return nil, apiErr
	}

	now := s.now().UTC()
	patch := storage.Record{
		"status":        string(target),
		"discharged_by": caller.ID,
		"discharged_at": now,
		"updated_at":    now,
	}
	setIf(patch, "discharge_notes", req.DischargeNotes)
	setIf(patch, "discharge_instructions", req.DischargeInstructions)

	kennelID := rec.String("kennel_id")
	if scope.Transactional() {
		err = scope.InTx(ctx, func(tx *storage.Scope) error {
			if err := closeHospitalization(ctx, tx, id, patch); err != nil {
				return err
			}
			_, err := s.releaseKennel(ctx, tx, kennelID, now)
			return err
		})
	} else {
		err = s.dischargeCompensating(ctx, scope, id, kennelID, patch, now)
	}
	if err != nil {
		return nil, err
	}

	observability.DischargesTotal.WithLabelValues(string(target)).Inc()
	s.logger.Info("hospitalization closed",
		"tenant_id", scope.TenantID(),
		"hospitalization_id", id,
		"status", string(target),
		"discharged_by", caller.ID,
	)

	for k, v := range patch {
		rec[k] = v
	}
	return hospitalizationFromRecord(rec), nil
}

// closeHospitalization sets the terminal status. Filtering on the active
// status keeps two concurrent discharges from both succeeding.
func closeHospitalization(ctx context.Context, scope *storage.Scope, id string, patch storage.Record) error {
	upd := scope.Update(HospitalizationsCollection).
		Eq("id", id).
		Eq("status", string(api.HospitalizationActive))
	for k, v := range patch {
		upd.Set(k, v)
	}
	n, err := upd.Exec(ctx)
	if err != nil {
		return fmt.Errorf("closing hospitalization: %w", err)
	}
	if n == 0 {
		return api.NewConflictError(api.ReasonHospitalizationNotActive,
			"hospitalization is no longer active", false)
	}
	return nil
}

// releaseKennel moves the kennel back to available. A kennel that is not
// occupied is left alone and reported.
func (s *Service) releaseKennel(ctx context.Context, scope *storage.Scope, kennelID string, now time.Time) (bool, error) {
	n, err := scope.Update(KennelsCollection).
		Eq("id", kennelID).
		Eq("status", string(api.KennelOccupied)).
		Set("status", string(api.KennelAvailable)).
		Set("updated_at", now).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("releasing kennel: %w", err)
	}
	if n == 0 {
		s.logger.Warn("discharged hospitalization's kennel was not occupied",
			"tenant_id", scope.TenantID(),
			"kennel_id", kennelID,
		)
	}
	return n > 0, nil
}

// dischargeCompensating is the discharge path for backends without
// transactions. When the kennel cannot be released the hospitalization is
// reopened; when that fails too the discharge is reported incomplete.
func (s *Service) dischargeCompensating(ctx context.Context, scope *storage.Scope, id, kennelID string, patch storage.Record, now time.Time) error {
	if err := closeHospitalization(ctx, scope, id, patch); err != nil {
		return err
	}

	_, relErr := s.releaseKennel(ctx, scope, kennelID, now)
	if relErr == nil {
		return nil
	}

	n, err := scope.Update(HospitalizationsCollection).
		Eq("id", id).
		Eq("status", patch["status"]).
		Set("status", string(api.HospitalizationActive)).
		Set("discharged_by", nil).
		Set("discharged_at", nil).
		Set("updated_at", now).
		Exec(ctx)
	if err != nil || n == 0 {
		s.logger.Error("discharge left kennel occupied",
			"tenant_id", scope.TenantID(),
			"hospitalization_id", id,
			"kennel_id", kennelID,
			"error", relErr,
			"reopen_error", err,
		)
		return api.NewConflictError(api.ReasonDischargeIncomplete,
			"discharge did not complete, check the kennel before retrying", true).
			WithDetail("kennel_id", kennelID)
	}
	return relErr
}
