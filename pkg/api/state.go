package api

import "fmt"

// hospitalizationTransitions lists the allowed outgoing statuses.
// Discharged, deceased and transferred are terminal.
var hospitalizationTransitions = map[HospitalizationStatus][]HospitalizationStatus{
	HospitalizationActive: {HospitalizationDischarged, HospitalizationDeceased, HospitalizationTransferred},
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s HospitalizationStatus) IsTerminal() bool {
	return len(hospitalizationTransitions[s]) == 0
}

// ValidateHospitalizationTransition checks a hospitalization status change.
// Leaving a terminal state is a conflict; an unknown target is a format error.
func ValidateHospitalizationTransition(from, to HospitalizationStatus) *APIError {
	if !to.valid() || to == HospitalizationActive {
		return NewInvalidFormatError("status",
			fmt.Sprintf("status must be one of discharged, deceased, transferred, got %q", to))
	}

	for _, s := range hospitalizationTransitions[from] {
		if s == to {
			return nil
		}
	}

	return NewConflictError(ReasonHospitalizationNotActive,
		fmt.Sprintf("hospitalization is %s, not active", from), false)
}

func (s HospitalizationStatus) valid() bool {
	switch s {
	case HospitalizationActive, HospitalizationDischarged, HospitalizationDeceased, HospitalizationTransferred:
		return true
	}
	return false
}

// kennelManualTransitions lists the manual status changes staff may make.
// Occupied is entered and left only through admission and discharge.
var kennelManualTransitions = map[KennelStatus][]KennelStatus{
	KennelAvailable:   {KennelMaintenance, KennelReserved},
	KennelMaintenance: {KennelAvailable, KennelReserved},
	KennelReserved:    {KennelAvailable, KennelMaintenance},
}

// ValidateKennelTransition checks a manual kennel status change.
func ValidateKennelTransition(from, to KennelStatus) *APIError {
	switch to {
	case KennelAvailable, KennelMaintenance, KennelReserved:
	default:
		return NewInvalidFormatError("status",
			fmt.Sprintf("status must be one of available, maintenance, reserved, got %q", to))
	}

	if from == KennelOccupied {
		return NewConflictError(ReasonKennelOccupied, "kennel is occupied", false)
	}
	if from == to {
		return nil
	}

	for _, s := range kennelManualTransitions[from] {
		if s == to {
			return nil
		}
	}

	return NewInvalidFormatError("status",
		fmt.Sprintf("invalid transition from %s to %s", from, to))
}
