package storage

import (
	"context"
	"errors"
	"fmt"
)

// TenantColumn is the column every tenant-owned collection carries.
const TenantColumn = "tenant_id"

// Scope hands out query builders bound to a single tenant. Every builder
// filters on or writes tenant_id; there is no way to reach other tenants'
// rows through a Scope.
type Scope struct {
	backend  Backend
	tenantID string
}

// NewScope binds backend to tenantID. An empty tenant yields a scope that
// reads nothing and refuses writes.
func NewScope(backend Backend, tenantID string) *Scope {
	return &Scope{backend: backend, tenantID: tenantID}
}

// TenantID returns the tenant the scope is bound to.
func (s *Scope) TenantID() string { return s.tenantID }

// Transactional reports whether InTx can run.
func (s *Scope) Transactional() bool {
	_, ok := s.backend.(Transactor)
	return ok
}

// InTx runs fn with a scope bound to a single transaction.
func (s *Scope) InTx(ctx context.Context, fn func(tx *Scope) error) error {
	t, ok := s.backend.(Transactor)
	if !ok {
		return ErrNoTransactions
	}
	return t.InTx(ctx, func(b Backend) error {
		return fn(NewScope(b, s.tenantID))
	})
}

// Ownership reports whether the record with the given id belongs to the
// scope's tenant. It returns nil, ErrNotFound, or ErrTenantMismatch and
// never exposes the record itself. Backends implementing TenantResolver
// answer the lookup themselves; others are read without a session so a
// foreign record is told apart from a missing one.
func (s *Scope) Ownership(ctx context.Context, collection, id string) error {
	tenant, err := s.recordTenant(ctx, collection, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("checking owner of %s %s: %w", collection, id, err)
	}
	if s.tenantID == "" || tenant != s.tenantID {
		return ErrTenantMismatch
	}
	return nil
}

func (s *Scope) recordTenant(ctx context.Context, collection, id string) (string, error) {
	if r, ok := s.backend.(TenantResolver); ok {
		return r.RecordTenant(ctx, collection, id)
	}
	recs, err := s.backend.Find(WithoutSession(ctx), Query{
		Collection: collection,
		Filters:    []Filter{{Field: "id", Op: OpEq, Value: id}},
		Limit:      1,
	})
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "", ErrNotFound
	}
	return recs[0].String(TenantColumn), nil
}

// tenantFilter is prepended to every query.
func (s *Scope) tenantFilter() Filter {
	return Filter{Field: TenantColumn, Op: OpEq, Value: s.tenantID}
}

// filters collects user filters. Filters on tenant_id are dropped since the
// scope supplies its own.
type filters []Filter

func (f *filters) add(field string, op Op, value any) {
	if field == TenantColumn {
		return
	}
	*f = append(*f, Filter{Field: field, Op: op, Value: value})
}

// SelectBuilder reads records of one collection.
type SelectBuilder struct {
	scope      *Scope
	collection string
	filters    filters
	order      []Order
	limit      int
}

// Select starts a tenant-scoped read.
func (s *Scope) Select(collection string) *SelectBuilder {
	return &SelectBuilder{scope: s, collection: collection}
}

// Eq adds an equality filter.
func (b *SelectBuilder) Eq(field string, value any) *SelectBuilder {
	b.filters.add(field, OpEq, value)
	return b
}

// HasPrefix adds a string prefix filter.
func (b *SelectBuilder) HasPrefix(field, prefix string) *SelectBuilder {
	b.filters.add(field, OpPrefix, prefix)
	return b
}

// OrderBy sorts results.
func (b *SelectBuilder) OrderBy(field string, desc bool) *SelectBuilder {
	b.order = append(b.order, Order{Field: field, Desc: desc})
	return b
}

// Limit caps the number of results.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = n
	return b
}

// All runs the query.
func (b *SelectBuilder) All(ctx context.Context) ([]Record, error) {
	if b.scope.tenantID == "" {
		return nil, nil
	}
	return b.scope.backend.Find(ctx, Query{
		Collection: b.collection,
		Filters:    append([]Filter{b.scope.tenantFilter()}, b.filters...),
		OrderBy:    b.order,
		Limit:      b.limit,
	})
}

// One runs the query and returns the first record, or ErrNotFound.
func (b *SelectBuilder) One(ctx context.Context) (Record, error) {
	b.limit = 1
	recs, err := b.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

// InsertBuilder writes one record.
type InsertBuilder struct {
	scope      *Scope
	collection string
	rec        Record
}

// Insert starts a tenant-scoped insert. Any tenant_id in rec is replaced.
func (s *Scope) Insert(collection string, rec Record) *InsertBuilder {
	return &InsertBuilder{scope: s, collection: collection, rec: rec}
}

// Exec runs the insert.
func (b *InsertBuilder) Exec(ctx context.Context) error {
	if b.scope.tenantID == "" {
		return ErrNoTenant
	}
	rec := b.rec.Clone()
	rec[TenantColumn] = b.scope.tenantID
	return b.scope.backend.Insert(ctx, b.collection, rec)
}

// UpdateBuilder patches records.
type UpdateBuilder struct {
	scope      *Scope
	collection string
	filters    filters
	patch      Record
}

// Update starts a tenant-scoped update.
func (s *Scope) Update(collection string) *UpdateBuilder {
	return &UpdateBuilder{scope: s, collection: collection, patch: Record{}}
}

// Eq adds an equality filter. Filtering on a column's current value turns
// the update into a compare-and-set.
func (b *UpdateBuilder) Eq(field string, value any) *UpdateBuilder {
	b.filters.add(field, OpEq, value)
	return b
}

// Set adds a column to the patch. tenant_id cannot be changed.
func (b *UpdateBuilder) Set(field string, value any) *UpdateBuilder {
	if field != TenantColumn {
		b.patch[field] = value
	}
	return b
}

// Exec runs the update and returns the number of records changed.
func (b *UpdateBuilder) Exec(ctx context.Context) (int64, error) {
	if b.scope.tenantID == "" {
		return 0, nil
	}
	if len(b.patch) == 0 {
		return 0, errors.New("update without columns")
	}
	return b.scope.backend.Update(ctx, Query{
		Collection: b.collection,
		Filters:    append([]Filter{b.scope.tenantFilter()}, b.filters...),
	}, b.patch)
}

// DeleteBuilder removes records.
type DeleteBuilder struct {
	scope      *Scope
	collection string
	filters    filters
}

// Delete starts a tenant-scoped delete.
func (s *Scope) Delete(collection string) *DeleteBuilder {
	return &DeleteBuilder{scope: s, collection: collection}
}

// Eq adds an equality filter.
func (b *DeleteBuilder) Eq(field string, value any) *DeleteBuilder {
	b.filters.add(field, OpEq, value)
	return b
}

// Exec runs the delete and returns the number of records removed.
func (b *DeleteBuilder) Exec(ctx context.Context) (int64, error) {
	if b.scope.tenantID == "" {
		return 0, nil
	}
	return b.scope.backend.Delete(ctx, Query{
		Collection: b.collection,
		Filters:    append([]Filter{b.scope.tenantFilter()}, b.filters...),
	})
}
