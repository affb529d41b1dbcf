package storage

import "context"

// Record is one row of a collection, keyed by column name.
type Record map[string]any

// Op is a filter comparison.
type Op string

const (
	// OpEq matches an exact value.
	OpEq Op = "eq"
	// OpPrefix matches string values starting with the filter value.
	OpPrefix Op = "prefix"
)

// Filter restricts a query to records whose Field matches Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Order sorts query results by Field.
type Order struct {
	Field string
	Desc  bool
}

// Query selects records of one collection. All filters must match.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    []Order
	Limit      int // 0 = unlimited
}

// Backend is the record store behind every Scope. Implementations must treat
// filters conjunctively and return ErrConflict on uniqueness violations.
type Backend interface {
	// Find returns the records matching q, or an empty slice.
	Find(ctx context.Context, q Query) ([]Record, error)

	// Insert adds rec to the collection. rec must carry an "id".
	Insert(ctx context.Context, collection string, rec Record) error

	// Update applies patch to every record matching q and returns the
	// number of records changed.
	Update(ctx context.Context, q Query, patch Record) (int64, error)

	// Delete removes every record matching q and returns the count.
	Delete(ctx context.Context, q Query) (int64, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}

// Transactor is implemented by backends that can apply several writes as one
// unit. fn receives a Backend bound to the transaction; returning an error
// rolls everything back.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx Backend) error) error
}

// SessionContextSetter is implemented by backends that evaluate row-level
// security from per-session settings.
type SessionContextSetter interface {
	SetSessionContext(ctx context.Context, tenantID, role string) (context.Context, error)
}

// TenantResolver is implemented by backends that can report which tenant
// owns a record without making the record itself visible to the session.
type TenantResolver interface {
	// RecordTenant returns the tenant_id of the record, or ErrNotFound.
	RecordTenant(ctx context.Context, collection, id string) (string, error)
}

// Matches reports whether rec satisfies every filter of q. Backends without
// a query engine use it to evaluate filters in process.
func Matches(rec Record, filters []Filter) bool {
	for _, f := range filters {
		v, ok := rec[f.Field]
		if !ok {
			return false
		}
		switch f.Op {
		case OpPrefix:
			s, ok := v.(string)
			p, _ := f.Value.(string)
			if !ok || len(s) < len(p) || s[:len(p)] != p {
				return false
			}
		default:
			if !equalValues(v, f.Value) {
				return false
			}
		}
	}
	return true
}

func equalValues(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}
