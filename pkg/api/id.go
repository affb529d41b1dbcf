package api

import "github.com/google/uuid"

// NewID returns a random UUID string for a new record.
func NewID() string {
	return uuid.NewString()
}

// ValidateID reports whether id is a well-formed UUID.
func ValidateID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
