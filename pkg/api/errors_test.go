package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestAPIError_JSONShape(t *testing.T) {
	err := NewMissingFieldsError("pet_id", "admission_diagnosis")

	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("marshal: %v", jerr)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got["code"] != "MISSING_FIELDS" {
		t.Errorf("code = %v, want MISSING_FIELDS", got["code"])
	}
	if got["error"] == "" {
		t.Error("error message is empty")
	}
	if _, ok := got["Status"]; ok {
		t.Error("status must not be serialized")
	}
	details, ok := got["details"].(map[string]any)
	if !ok {
		t.Fatalf("details missing: %s", data)
	}
	fields, _ := details["fields"].([]any)
	if len(fields) != 2 {
		t.Errorf("fields = %v, want 2 entries", fields)
	}
}

func TestAPIError_Statuses(t *testing.T) {
	tests := []struct {
		err  *APIError
		want int
	}{
		{NewUnauthorizedError(), http.StatusUnauthorized},
		{NewAccountInactiveError(), http.StatusForbidden},
		{NewInsufficientRoleError(StaffRoles), http.StatusForbidden},
		{NewTenantMismatchError(), http.StatusForbidden},
		{NewForbiddenError("x"), http.StatusForbidden},
		{NewMissingFieldsError("a"), http.StatusBadRequest},
		{NewInvalidFormatError("a", "bad"), http.StatusBadRequest},
		{NewUnsupportedMediaTypeError(), http.StatusUnsupportedMediaType},
		{NewNotFoundError("pet", "p1"), http.StatusNotFound},
		{NewConflictError(ReasonKennelNotAvailable, "busy", false), http.StatusConflict},
		{NewRateLimitedError("admission", time.Second), http.StatusTooManyRequests},
		{NewServerError(), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if tt.err.Status != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.err.Code, tt.err.Status, tt.want)
		}
	}
}

func TestAPIError_Public(t *testing.T) {
	for _, e := range []*APIError{NewAccountInactiveError(), NewInsufficientRoleError(StaffRoles), NewTenantMismatchError()} {
		pub := e.Public()
		if pub.Code != CodeForbidden {
			t.Errorf("%s: public code = %s, want FORBIDDEN", e.Code, pub.Code)
		}
		if pub.Details["reason"] != string(e.Code) {
			t.Errorf("%s: reason = %v", e.Code, pub.Details["reason"])
		}
		if e.Details["reason"] != nil {
			t.Errorf("%s: original error was mutated", e.Code)
		}
	}

	unauth := NewUnauthorizedError()
	if unauth.Public() != unauth {
		t.Error("401 should be exposed unchanged")
	}

	conflict := NewConflictError(ReasonKennelNotAvailable, "busy", false)
	if conflict.Public().Code != CodeConflict {
		t.Error("domain errors should be exposed unchanged")
	}
}

func TestAPIError_Retryable(t *testing.T) {
	if NewConflictError(ReasonKennelNotAvailable, "busy", false).Retryable() {
		t.Error("kennel_not_available should not be retryable")
	}
	if !NewConflictError(ReasonAdmissionIncomplete, "partial", true).Retryable() {
		t.Error("admission_incomplete should be retryable")
	}
	if NewServerError().Retryable() {
		t.Error("server error without details should not be retryable")
	}
}

func TestRateLimitedError_RetryAfter(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{300 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{42 * time.Second, 42},
	}
	for _, tt := range tests {
		got := NewRateLimitedError("write", tt.in).RetryAfterSeconds()
		if got != tt.want {
			t.Errorf("RetryAfterSeconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAPIError_ErrorString(t *testing.T) {
	err := NewNotFoundError("kennel", "k1")
	if got, want := err.Error(), "NOT_FOUND: kennel not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
