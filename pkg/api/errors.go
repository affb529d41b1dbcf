package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorCode is the stable, machine-readable identifier carried by every
// error response. Presentation layers map codes to localized text.
type ErrorCode string

const (
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeAccountInactive  ErrorCode = "ACCOUNT_INACTIVE"
	CodeInsufficientRole ErrorCode = "INSUFFICIENT_ROLE"
	CodeTenantMismatch   ErrorCode = "TENANT_MISMATCH"
	CodeForbidden        ErrorCode = "FORBIDDEN"
	CodeMissingFields    ErrorCode = "MISSING_FIELDS"
	CodeInvalidFormat    ErrorCode = "INVALID_FORMAT"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeRateLimited      ErrorCode = "RATE_LIMITED"
	CodeServerError      ErrorCode = "SERVER_ERROR"
)

// Conflict reasons reported in the "reason" detail of CONFLICT errors.
const (
	ReasonKennelNotAvailable       = "kennel_not_available"
	ReasonKennelOccupied           = "kennel_occupied"
	ReasonKennelCodeTaken          = "kennel_code_taken"
	ReasonAdmissionNumberTaken     = "admission_number_taken"
	ReasonAdmissionIncomplete      = "admission_incomplete"
	ReasonDischargeIncomplete      = "discharge_incomplete"
	ReasonHospitalizationNotActive = "hospitalization_not_active"
)

// APIError is a typed failure with a stable code, a human message, and the
// HTTP-equivalent status. It serializes to {"error", "code", "details"}.
type APIError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
	Status  int            `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsAuthorization reports whether the error was produced by the
// authorization gate rather than a domain handler.
func (e *APIError) IsAuthorization() bool {
	switch e.Code {
	case CodeUnauthorized, CodeAccountInactive, CodeInsufficientRole, CodeTenantMismatch:
		return true
	}
	return false
}

// Retryable reports whether the caller may safely retry the operation
// after re-reading state.
func (e *APIError) Retryable() bool {
	v, _ := e.Details["retryable"].(bool)
	return v
}

// WithDetail returns a copy of the error with the detail key set.
func (e *APIError) WithDetail(key string, value any) *APIError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Public returns the representation exposed over HTTP. Gate failures with
// status 403 collapse to FORBIDDEN, keeping the precise code in the
// "reason" detail.
func (e *APIError) Public() *APIError {
	if e.Status != http.StatusForbidden || !e.IsAuthorization() {
		return e
	}
	pub := e.WithDetail("reason", string(e.Code))
	pub.Code = CodeForbidden
	return pub
}

// NewUnauthorizedError is returned when no authenticated context exists.
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:    CodeUnauthorized,
		Message: "authentication required",
		Status:  http.StatusUnauthorized,
	}
}

// NewAccountInactiveError is returned for deactivated profiles.
func NewAccountInactiveError() *APIError {
	return &APIError{
		Code:    CodeAccountInactive,
		Message: "account is inactive",
		Status:  http.StatusForbidden,
	}
}

// NewInsufficientRoleError is returned when the caller's role is not one of
// the allowed roles.
func NewInsufficientRoleError(allowed []Role) *APIError {
	roles := make([]string, len(allowed))
	for i, r := range allowed {
		roles[i] = string(r)
	}
	return &APIError{
		Code:    CodeInsufficientRole,
		Message: "insufficient role",
		Details: map[string]any{"required_roles": roles},
		Status:  http.StatusForbidden,
	}
}

// NewTenantMismatchError is returned when the caller targets another clinic.
func NewTenantMismatchError() *APIError {
	return &APIError{
		Code:    CodeTenantMismatch,
		Message: "resource belongs to a different clinic",
		Status:  http.StatusForbidden,
	}
}

// NewForbiddenError is returned by domain handlers for cross-tenant access.
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// NewMissingFieldsError lists required fields that were absent or blank.
func NewMissingFieldsError(fields ...string) *APIError {
	return &APIError{
		Code:    CodeMissingFields,
		Message: "missing required fields: " + strings.Join(fields, ", "),
		Details: map[string]any{"fields": fields},
		Status:  http.StatusBadRequest,
	}
}

// NewInvalidFormatError is returned for malformed bodies or field values.
func NewInvalidFormatError(field, message string) *APIError {
	e := &APIError{
		Code:    CodeInvalidFormat,
		Message: message,
		Status:  http.StatusBadRequest,
	}
	if field != "" {
		e.Details = map[string]any{"field": field}
	}
	return e
}

// NewUnsupportedMediaTypeError is returned when the body is not JSON.
func NewUnsupportedMediaTypeError() *APIError {
	return &APIError{
		Code:    CodeInvalidFormat,
		Message: "Content-Type must be application/json",
		Status:  http.StatusUnsupportedMediaType,
	}
}

// NewNotFoundError is returned when a resource does not exist.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    CodeNotFound,
		Message: resource + " not found",
		Details: map[string]any{"resource": resource, "id": id},
		Status:  http.StatusNotFound,
	}
}

// NewConflictError reports a state conflict. Retryable conflicts signal
// that re-reading state and retrying may succeed.
func NewConflictError(reason, message string, retryable bool) *APIError {
	return &APIError{
		Code:    CodeConflict,
		Message: message,
		Details: map[string]any{"reason": reason, "retryable": retryable},
		Status:  http.StatusConflict,
	}
}

// NewRateLimitedError is returned when the caller exceeded a limit.
func NewRateLimitedError(limitType string, retryAfter time.Duration) *APIError {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return &APIError{
		Code:    CodeRateLimited,
		Message: "rate limit exceeded",
		Details: map[string]any{"limit_type": limitType, "retry_after": secs},
		Status:  http.StatusTooManyRequests,
	}
}

// RetryAfterSeconds returns the retry hint of a RATE_LIMITED error, or 0.
func (e *APIError) RetryAfterSeconds() int {
	v, _ := e.Details["retry_after"].(int)
	return v
}

// NewServerError is the generic failure returned for unexpected errors.
// The cause is never included.
func NewServerError() *APIError {
	return &APIError{
		Code:    CodeServerError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
	}
}
