package api

import "testing"

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b {
		t.Errorf("two ids are equal: %s", a)
	}
	if !ValidateID(a) {
		t.Errorf("generated id %q does not validate", a)
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"2f1c6a52-6d0e-4a59-9f3f-1d2b8e4c7a10", true},
		{"2F1C6A52-6D0E-4A59-9F3F-1D2B8E4C7A10", true},
		{"", false},
		{"not-a-uuid", false},
		{"2f1c6a526d0e4a599f3f1d2b8e4c7a10", false},
		{"urn:uuid:2f1c6a52-6d0e-4a59-9f3f-1d2b8e4c7a10", false},
		{"2f1c6a52-6d0e-4a59-9f3f-1d2b8e4c7a1g", false},
	}
	for _, tt := range tests {
		if got := ValidateID(tt.id); got != tt.want {
			t.Errorf("ValidateID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
