package hospitalization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vetora/vetora/pkg/api"
	"github.com/vetora/vetora/pkg/storage"
)

// Collections read and written by the service.
const (
	PetsCollection             = "pets"
	KennelsCollection          = "kennels"
	HospitalizationsCollection = "hospitalizations"
)

// Service runs the admission workflow and the kennel operations around it.
// It holds no per-request state; every call receives the caller's tenant
// scope.
type Service struct {
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source used for admission numbers and
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a service.
func NewService(opts ...Option) *Service {
	s := &Service{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// owned checks that the record exists in the scope's clinic. A record of
// another clinic is reported as forbidden, never as not found.
func owned(ctx context.Context, scope *storage.Scope, collection, resource, id string) error {
	err := scope.Ownership(ctx, collection, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError(resource, id)
	case errors.Is(err, storage.ErrTenantMismatch):
		return api.NewForbiddenError(resource + " belongs to a different clinic")
	default:
		return fmt.Errorf("checking %s ownership: %w", resource, err)
	}
}

// load reads one record of the scope's clinic. It runs after owned, so a
// miss means the record disappeared in between.
func load(ctx context.Context, scope *storage.Scope, collection, resource, id string) (storage.Record, error) {
	rec, err := scope.Select(collection).Eq("id", id).One(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, api.NewNotFoundError(resource, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", resource, err)
	}
	return rec, nil
}

func kennelFromRecord(rec storage.Record) *api.Kennel {
	return &api.Kennel{
		ID:        rec.String("id"),
		TenantID:  rec.String(storage.TenantColumn),
		Name:      rec.String("name"),
		Code:      rec.String("code"),
		Size:      rec.String("size"),
		Status:    api.KennelStatus(rec.String("status")),
		DailyRate: rec.Float("daily_rate"),
		Notes:     rec.String("notes"),
		CreatedAt: rec.Time("created_at"),
		UpdatedAt: rec.Time("updated_at"),
	}
}

func hospitalizationFromRecord(rec storage.Record) *api.Hospitalization {
	return &api.Hospitalization{
		ID:                     rec.String("id"),
		TenantID:               rec.String(storage.TenantColumn),
		Number:                 rec.String("hospitalization_number"),
		PetID:                  rec.String("pet_id"),
		KennelID:               rec.String("kennel_id"),
		Type:                   api.HospitalizationType(rec.String("hospitalization_type")),
		Status:                 api.HospitalizationStatus(rec.String("status")),
		AdmissionDiagnosis:     rec.String("admission_diagnosis"),
		AcuityLevel:            api.AcuityLevel(rec.String("acuity_level")),
		TreatmentPlan:          rec.String("treatment_plan"),
		DietInstructions:       rec.String("diet_instructions"),
		SpecialInstructions:    rec.String("special_instructions"),
		EmergencyContactName:   rec.String("emergency_contact_name"),
		EmergencyContactPhone:  rec.String("emergency_contact_phone"),
		EstimatedDischargeDate: rec.TimePtr("estimated_discharge_date"),
		AdmittedBy:             rec.String("admitted_by"),
		AdmittedAt:             rec.Time("admitted_at"),
		DischargedBy:           rec.String("discharged_by"),
		DischargedAt:           rec.TimePtr("discharged_at"),
		DischargeNotes:         rec.String("discharge_notes"),
		DischargeInstructions:  rec.String("discharge_instructions"),
		CreatedAt:              rec.Time("created_at"),
		UpdatedAt:              rec.Time("updated_at"),
	}
}

// setIf adds key to rec when v is not empty.
func setIf(rec storage.Record, key, v string) {
	if v != "" {
		rec[key] = v
	}
}
