package api

import "time"

// Role is the closed set of profile roles.
type Role string

const (
	RoleOwner Role = "owner"
	RoleVet   Role = "vet"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleVet, RoleAdmin:
		return true
	}
	return false
}

// StaffRoles are the roles allowed to manage hospitalizations.
var StaffRoles = []Role{RoleVet, RoleAdmin}

// Profile is the authorization-relevant projection of a user.
type Profile struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Role      Role      `json:"role"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pet carries the fields of a patient that the admission path reads.
type Pet struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Name      string    `json:"name"`
	Species   string    `json:"species,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// KennelStatus is the occupancy state of a kennel.
type KennelStatus string

const (
	KennelAvailable   KennelStatus = "available"
	KennelOccupied    KennelStatus = "occupied"
	KennelMaintenance KennelStatus = "maintenance"
	KennelReserved    KennelStatus = "reserved"
)

// Kennel is a physical space a hospitalized pet is assigned to.
type Kennel struct {
	ID        string       `json:"id"`
	TenantID  string       `json:"tenant_id"`
	Name      string       `json:"name"`
	Code      string       `json:"code"`
	Size      string       `json:"size,omitempty"`
	Status    KennelStatus `json:"status"`
	DailyRate float64      `json:"daily_rate,omitempty"`
	Notes     string       `json:"notes,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// HospitalizationStatus tracks the lifecycle of an admission.
type HospitalizationStatus string

const (
	HospitalizationActive      HospitalizationStatus = "active"
	HospitalizationDischarged  HospitalizationStatus = "discharged"
	HospitalizationDeceased    HospitalizationStatus = "deceased"
	HospitalizationTransferred HospitalizationStatus = "transferred"
)

// HospitalizationType classifies the reason for admission.
type HospitalizationType string

const (
	TypeMedical       HospitalizationType = "medical"
	TypeSurgical      HospitalizationType = "surgical"
	TypeObservation   HospitalizationType = "observation"
	TypeIntensiveCare HospitalizationType = "intensive_care"
	TypeIsolation     HospitalizationType = "isolation"
)

// AcuityLevel is the optional triage level of an admission.
type AcuityLevel string

const (
	AcuityLow      AcuityLevel = "low"
	AcuityMedium   AcuityLevel = "medium"
	AcuityHigh     AcuityLevel = "high"
	AcuityCritical AcuityLevel = "critical"
)

// Hospitalization is an open or closed kennel admission.
type Hospitalization struct {
	ID                     string                `json:"id"`
	TenantID               string                `json:"tenant_id"`
	Number                 string                `json:"hospitalization_number"`
	PetID                  string                `json:"pet_id"`
	KennelID               string                `json:"kennel_id"`
	Type                   HospitalizationType   `json:"hospitalization_type"`
	Status                 HospitalizationStatus `json:"status"`
	AdmissionDiagnosis     string                `json:"admission_diagnosis"`
	AcuityLevel            AcuityLevel           `json:"acuity_level,omitempty"`
	TreatmentPlan          string                `json:"treatment_plan,omitempty"`
	DietInstructions       string                `json:"diet_instructions,omitempty"`
	SpecialInstructions    string                `json:"special_instructions,omitempty"`
	EmergencyContactName   string                `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone  string                `json:"emergency_contact_phone,omitempty"`
	EstimatedDischargeDate *time.Time            `json:"estimated_discharge_date,omitempty"`
	AdmittedBy             string                `json:"admitted_by"`
	AdmittedAt             time.Time             `json:"admitted_at"`
	DischargedBy           string                `json:"discharged_by,omitempty"`
	DischargedAt           *time.Time            `json:"discharged_at,omitempty"`
	DischargeNotes         string                `json:"discharge_notes,omitempty"`
	DischargeInstructions  string                `json:"discharge_instructions,omitempty"`
	CreatedAt              time.Time             `json:"created_at"`
	UpdatedAt              time.Time             `json:"updated_at"`
}

// AdmissionRequest is the body of an admission. Optional fields may be
// omitted. EstimatedDischargeDate accepts RFC 3339 or YYYY-MM-DD.
type AdmissionRequest struct {
	PetID                  string `json:"pet_id"`
	KennelID               string `json:"kennel_id"`
	HospitalizationType    string `json:"hospitalization_type"`
	AdmissionDiagnosis     string `json:"admission_diagnosis"`
	AcuityLevel            string `json:"acuity_level,omitempty"`
	TreatmentPlan          string `json:"treatment_plan,omitempty"`
	DietInstructions       string `json:"diet_instructions,omitempty"`
	SpecialInstructions    string `json:"special_instructions,omitempty"`
	EmergencyContactName   string `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone  string `json:"emergency_contact_phone,omitempty"`
	EstimatedDischargeDate string `json:"estimated_discharge_date,omitempty"`
}

// DischargeRequest closes an active hospitalization.
type DischargeRequest struct {
	Status                string `json:"status"`
	DischargeNotes        string `json:"discharge_notes,omitempty"`
	DischargeInstructions string `json:"discharge_instructions,omitempty"`
}

// KennelRequest creates a kennel.
type KennelRequest struct {
	Name      string  `json:"name"`
	Code      string  `json:"code"`
	Size      string  `json:"size,omitempty"`
	DailyRate float64 `json:"daily_rate,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

// KennelStatusRequest changes a kennel's status manually.
type KennelStatusRequest struct {
	ClinicID string `json:"clinic_id"`
	KennelID string `json:"kennel_id"`
	Status   string `json:"status"`
}

// ScopeTenantID exposes the targeted clinic to the authorization gate.
func (r KennelStatusRequest) ScopeTenantID() string { return r.ClinicID }

// DischargeAction is the action-style form of a discharge.
type DischargeAction struct {
	HospitalizationID string `json:"hospitalization_id"`
	DischargeRequest
}
