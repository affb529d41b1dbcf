// Package storage defines the record-level backend contract shared by the
// memory and postgres adapters, and the tenant [Scope] handlers use to reach
// it.
//
// Handlers never talk to a [Backend] directly. A Scope binds every select,
// insert, update and delete to one tenant_id, so a forgotten filter cannot
// leak rows across clinics. Backends that enforce row-level security read
// the [Session] placed in the context by [SessionContextSetter] and apply it
// beneath the application-level scoping.
package storage
