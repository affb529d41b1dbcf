package api

import (
	"fmt"
	"strings"
	"time"
)

const (
	maxDiagnosisLength = 2000
	maxNotesLength     = 5000
	maxNameLength      = 100
)

// ValidateAdmission checks an admission request before any storage access.
// Missing required fields are reported together, ahead of format errors.
func ValidateAdmission(req *AdmissionRequest) *APIError {
	var missing []string
	if strings.TrimSpace(req.PetID) == "" {
		missing = append(missing, "pet_id")
	}
	if strings.TrimSpace(req.KennelID) == "" {
		missing = append(missing, "kennel_id")
	}
	if strings.TrimSpace(req.HospitalizationType) == "" {
		missing = append(missing, "hospitalization_type")
	}
	if strings.TrimSpace(req.AdmissionDiagnosis) == "" {
		missing = append(missing, "admission_diagnosis")
	}
	if len(missing) > 0 {
		return NewMissingFieldsError(missing...)
	}

	if !ValidateID(req.PetID) {
		return NewInvalidFormatError("pet_id", "pet_id must be a UUID")
	}
	if !ValidateID(req.KennelID) {
		return NewInvalidFormatError("kennel_id", "kennel_id must be a UUID")
	}

	switch HospitalizationType(req.HospitalizationType) {
	case TypeMedical, TypeSurgical, TypeObservation, TypeIntensiveCare, TypeIsolation:
	default:
		return NewInvalidFormatError("hospitalization_type",
			fmt.Sprintf("unknown hospitalization_type %q", req.HospitalizationType))
	}

	if req.AcuityLevel != "" {
		switch AcuityLevel(req.AcuityLevel) {
		case AcuityLow, AcuityMedium, AcuityHigh, AcuityCritical:
		default:
			return NewInvalidFormatError("acuity_level",
				fmt.Sprintf("unknown acuity_level %q", req.AcuityLevel))
		}
	}

	if len(req.AdmissionDiagnosis) > maxDiagnosisLength {
		return NewInvalidFormatError("admission_diagnosis",
			fmt.Sprintf("admission_diagnosis exceeds %d characters", maxDiagnosisLength))
	}
	notes := []struct{ field, value string }{
		{"treatment_plan", req.TreatmentPlan},
		{"diet_instructions", req.DietInstructions},
		{"special_instructions", req.SpecialInstructions},
	}
	for _, n := range notes {
		if len(n.value) > maxNotesLength {
			return NewInvalidFormatError(n.field, fmt.Sprintf("%s exceeds %d characters", n.field, maxNotesLength))
		}
	}

	if req.EstimatedDischargeDate != "" {
		if _, err := ParseDate(req.EstimatedDischargeDate); err != nil {
			return NewInvalidFormatError("estimated_discharge_date",
				"estimated_discharge_date must be RFC 3339 or YYYY-MM-DD")
		}
	}

	return nil
}

// ValidateDischarge checks a discharge request.
func ValidateDischarge(id string, req *DischargeRequest) *APIError {
	if strings.TrimSpace(req.Status) == "" {
		return NewMissingFieldsError("status")
	}
	if !ValidateID(id) {
		return NewInvalidFormatError("id", "hospitalization id must be a UUID")
	}
	switch HospitalizationStatus(req.Status) {
	case HospitalizationDischarged, HospitalizationDeceased, HospitalizationTransferred:
	default:
		return NewInvalidFormatError("status",
			fmt.Sprintf("status must be one of discharged, deceased, transferred, got %q", req.Status))
	}
	if len(req.DischargeNotes) > maxNotesLength || len(req.DischargeInstructions) > maxNotesLength {
		return NewInvalidFormatError("discharge_notes",
			fmt.Sprintf("discharge text exceeds %d characters", maxNotesLength))
	}
	return nil
}

// ValidateKennel checks a kennel creation request.
func ValidateKennel(req *KennelRequest) *APIError {
	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(req.Code) == "" {
		missing = append(missing, "code")
	}
	if len(missing) > 0 {
		return NewMissingFieldsError(missing...)
	}
	if len(req.Name) > maxNameLength {
		return NewInvalidFormatError("name", fmt.Sprintf("name exceeds %d characters", maxNameLength))
	}
	if req.DailyRate < 0 {
		return NewInvalidFormatError("daily_rate", "daily_rate must not be negative")
	}
	switch req.Size {
	case "", "small", "medium", "large", "xlarge":
	default:
		return NewInvalidFormatError("size", fmt.Sprintf("unknown size %q", req.Size))
	}
	return nil
}

// ParseDate accepts an RFC 3339 timestamp or a plain YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
