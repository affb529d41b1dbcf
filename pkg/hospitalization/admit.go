package hospitalization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vetora/vetora/pkg/api"
	"github.com/vetora/vetora/pkg/debug"
	"github.com/vetora/vetora/pkg/observability"
	"github.com/vetora/vetora/pkg/storage"
)

var (
	errKennelTaken = api.NewConflictError(api.ReasonKennelNotAvailable, "kennel is not available", false)
	errNumberTaken = api.NewConflictError(api.ReasonAdmissionNumberTaken,
		"admission number was taken concurrently, retry the admission", true)
)

// Admit opens a hospitalization for a pet in an available kennel of the
// caller's clinic and marks the kennel occupied. The hospitalization
// insert and the kennel transition succeed or fail together.
//
// The caller's role is checked by the gate. Admit validates the request
// before touching storage.
func (s *Service) Admit(ctx context.Context, scope *storage.Scope, caller *api.Profile, req *api.AdmissionRequest) (*api.Hospitalization, error) {
	if apiErr := api.ValidateAdmission(req); apiErr != nil {
		observability.AdmissionsTotal.WithLabelValues("invalid").Inc()
		return nil, apiErr
	}

	h, err := s.admit(ctx, scope, caller, req)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Code == api.CodeConflict {
			observability.AdmissionsTotal.WithLabelValues("conflict").Inc()
		} else {
			observability.AdmissionsTotal.WithLabelValues("failed").Inc()
		}
		return nil, err
	}

	observability.AdmissionsTotal.WithLabelValues("admitted").Inc()
	s.logger.Info("pet admitted",
		"tenant_id", scope.TenantID(),
		"hospitalization_id", h.ID,
		"number", h.Number,
		"kennel_id", h.KennelID,
		"admitted_by", h.AdmittedBy,
	)
	return h, nil
}

func (s *Service) admit(ctx context.Context, scope *storage.Scope, caller *api.Profile, req *api.AdmissionRequest) (*api.Hospitalization, error) {
	if err := owned(ctx, scope, PetsCollection, "pet", req.PetID); err != nil {
		return nil, err
	}
	if err := owned(ctx, scope, KennelsCollection, "kennel", req.KennelID); err != nil {
		return nil, err
	}

	kennel, err := load(ctx, scope, KennelsCollection, "kennel", req.KennelID)
	if err != nil {
		return nil, err
	}
	if status := api.KennelStatus(kennel.String("status")); status != api.KennelAvailable {
		debug.Log("admission", "kennel not available", "kennel_id", req.KennelID, "status", string(status))
		return nil, errKennelTaken.WithDetail("kennel_status", string(status))
	}

	now := s.now().UTC()
	rec := newHospitalizationRecord(caller, req, now)

	if scope.Transactional() {
		err = scope.InTx(ctx, func(tx *storage.Scope) error {
			return s.admitIn(ctx, tx, rec, now)
		})
	} else {
		err = s.admitCompensating(ctx, scope, rec, now)
	}
	if err != nil {
		return nil, err
	}

	return hospitalizationFromRecord(rec), nil
}

// admitIn claims the kennel, numbers the admission and inserts it. Run
// inside a transaction the three steps commit together.
func (s *Service) admitIn(ctx context.Context, tx *storage.Scope, rec storage.Record, now time.Time) error {
	if err := claimKennel(ctx, tx, rec.String("kennel_id"), now); err != nil {
		return err
	}

	number, err := nextNumber(ctx, tx, now.Year())
	if err != nil {
		return err
	}
	rec["hospitalization_number"] = number
	debug.Log("admission", "assigned admission number", "number", number)

	return insertHospitalization(ctx, tx, rec)
}

// admitCompensating is the admission path for backends without
// transactions. A failed insert releases the kennel again; when that fails
// too the admission is reported incomplete.
func (s *Service) admitCompensating(ctx context.Context, scope *storage.Scope, rec storage.Record, now time.Time) error {
	kennelID := rec.String("kennel_id")
	if err := claimKennel(ctx, scope, kennelID, now); err != nil {
		return err
	}

	number, err := nextNumber(ctx, scope, now.Year())
	if err == nil {
		rec["hospitalization_number"] = number
		err = insertHospitalization(ctx, scope, rec)
	}
	if err == nil {
		return nil
	}

	n, relErr := scope.Update(KennelsCollection).
		Eq("id", kennelID).
		Eq("status", string(api.KennelOccupied)).
		Set("status", string(api.KennelAvailable)).
		Set("updated_at", now).
		Exec(ctx)
	if relErr != nil || n == 0 {
		s.logger.Error("admission left kennel occupied without hospitalization",
			"tenant_id", scope.TenantID(),
			"kennel_id", kennelID,
			"error", err,
			"release_error", relErr,
		)
		return api.NewConflictError(api.ReasonAdmissionIncomplete,
			"admission did not complete, check the kennel before retrying", true).
			WithDetail("kennel_id", kennelID)
	}
	return err
}

// claimKennel moves the kennel from available to occupied. The status
// filter makes it a compare-and-set: of two concurrent admissions only one
// can change the row.
func claimKennel(ctx context.Context, scope *storage.Scope, kennelID string, now time.Time) error {
	n, err := scope.Update(KennelsCollection).
		Eq("id", kennelID).
		Eq("status", string(api.KennelAvailable)).
		Set("status", string(api.KennelOccupied)).
		Set("updated_at", now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("claiming kennel: %w", err)
	}
	if n == 0 {
		return errKennelTaken
	}
	return nil
}

func insertHospitalization(ctx context.Context, scope *storage.Scope, rec storage.Record) error {
	err := scope.Insert(HospitalizationsCollection, rec).Exec(ctx)
	if errors.Is(err, storage.ErrConflict) {
		return errNumberTaken.WithDetail("hospitalization_number", rec.String("hospitalization_number"))
	}
	if err != nil {
		return fmt.Errorf("inserting hospitalization: %w", err)
	}
	rec[storage.TenantColumn] = scope.TenantID()
	return nil
}

func newHospitalizationRecord(caller *api.Profile, req *api.AdmissionRequest, now time.Time) storage.Record {
	rec := storage.Record{
		"id":                   api.NewID(),
		"pet_id":               req.PetID,
		"kennel_id":            req.KennelID,
		"hospitalization_type": req.HospitalizationType,
		"status":               string(api.HospitalizationActive),
		"admission_diagnosis":  req.AdmissionDiagnosis,
		"admitted_by":          caller.ID,
		"admitted_at":          now,
		"created_at":           now,
		"updated_at":           now,
	}
	setIf(rec, "acuity_level", req.AcuityLevel)
	setIf(rec, "treatment_plan", req.TreatmentPlan)
	setIf(rec, "diet_instructions", req.DietInstructions)
	setIf(rec, "special_instructions", req.SpecialInstructions)
	setIf(rec, "emergency_contact_name", req.EmergencyContactName)
	setIf(rec, "emergency_contact_phone", req.EmergencyContactPhone)
	if req.EstimatedDischargeDate != "" {
		// Already validated.
		if t, err := api.ParseDate(req.EstimatedDischargeDate); err == nil {
			rec["estimated_discharge_date"] = t.UTC()
		}
	}
	return rec
}
