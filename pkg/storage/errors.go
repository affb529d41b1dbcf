package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("record already exists")

	// ErrTenantMismatch is returned by ownership checks when the record
	// exists but belongs to another tenant.
	ErrTenantMismatch = errors.New("record belongs to another tenant")

	// ErrNoTenant is returned when a scoped write has no tenant to bind to.
	ErrNoTenant = errors.New("no tenant in scope")

	// ErrNoTransactions is returned by InTx when the backend cannot run
	// several writes atomically.
	ErrNoTransactions = errors.New("backend does not support transactions")
)
