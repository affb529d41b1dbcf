// Package hospitalization implements kennel admissions and discharges.
//
// An admission checks that the pet and the kennel belong to the caller's
// clinic and that the kennel is available, then assigns the next
// admission number of the year (H-2026-0001, H-2026-0002, ...), inserts
// the hospitalization and marks the kennel occupied. On transactional
// backends the insert and the kennel transition commit together; on other
// backends a failed insert is compensated and an unrecoverable partial
// write is reported as a retryable CONFLICT.
//
// A discharge moves an active hospitalization to discharged, deceased or
// transferred and releases its kennel under the same guarantees.
//
// All operations take the caller's storage.Scope, so they only ever read
// and write rows of the caller's clinic. Records of other clinics are
// reported as FORBIDDEN and missing records as NOT_FOUND.
package hospitalization
