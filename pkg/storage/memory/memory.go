// Package memory provides an in-memory storage.Backend for tests, demos and
// single-process deployments. Data is lost when the process restarts.
//
// Transactions run under the store lock against a copy of the data that is
// swapped in on success, so a failed InTx leaves no partial writes. When the
// context carries a storage.Session, rows of other tenants are hidden the
// way Postgres row-level security would hide them.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vetora/vetora/pkg/storage"
)

// Store is an in-memory storage.Backend.
type Store struct {
	mu      sync.Mutex
	data    *dataset
	uniques map[string][][]string
}

// Ensure Store implements the storage interfaces at compile time.
var (
	_ storage.Backend              = (*Store)(nil)
	_ storage.Transactor           = (*Store)(nil)
	_ storage.SessionContextSetter = (*Store)(nil)
	_ storage.TenantResolver       = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithUnique declares a uniqueness constraint over columns of a collection.
// Inserts and updates that would duplicate a value tuple fail with
// storage.ErrConflict.
func WithUnique(collection string, columns ...string) Option {
	return func(s *Store) {
		s.uniques[collection] = append(s.uniques[collection], columns)
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		uniques: make(map[string][][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.data = newDataset(s.uniques)
	return s
}

// Find returns copies of the matching records.
func (s *Store) Find(ctx context.Context, q storage.Query) ([]storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.find(ctx, q), nil
}

// Insert adds a record.
func (s *Store) Insert(ctx context.Context, collection string, rec storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.insert(ctx, collection, rec)
}

// Update patches matching records.
func (s *Store) Update(ctx context.Context, q storage.Query, patch storage.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.update(ctx, q, patch)
}

// Delete removes matching records.
func (s *Store) Delete(ctx context.Context, q storage.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.delete(ctx, q), nil
}

// InTx runs fn against a private copy of the data and commits it only when
// fn succeeds. Other callers block until the transaction ends; fn must use
// the tx backend it receives, not the Store.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.Backend) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txBackend{data: s.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

// SetSessionContext records the tenant and role in the context. Subsequent
// calls with that context only see the session tenant's rows.
func (s *Store) SetSessionContext(ctx context.Context, tenantID, role string) (context.Context, error) {
	if tenantID == "" {
		return ctx, fmt.Errorf("session context: empty tenant")
	}
	return storage.WithSession(ctx, storage.Session{TenantID: tenantID, Role: role}), nil
}

// RecordTenant returns the tenant owning the record regardless of the
// session, or storage.ErrNotFound.
func (s *Store) RecordTenant(_ context.Context, collection, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.recordTenant(collection, id)
}

// HealthCheck always succeeds.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of records in a collection, ignoring tenants.
func (s *Store) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.collections[collection])
}

// txBackend operates on a transaction's copy while the store lock is held.
type txBackend struct {
	data *dataset
}

func (t *txBackend) Find(ctx context.Context, q storage.Query) ([]storage.Record, error) {
	return t.data.find(ctx, q), nil
}

func (t *txBackend) Insert(ctx context.Context, collection string, rec storage.Record) error {
	return t.data.insert(ctx, collection, rec)
}

func (t *txBackend) Update(ctx context.Context, q storage.Query, patch storage.Record) (int64, error) {
	return t.data.update(ctx, q, patch)
}

func (t *txBackend) Delete(ctx context.Context, q storage.Query) (int64, error) {
	return t.data.delete(ctx, q), nil
}

func (t *txBackend) RecordTenant(_ context.Context, collection, id string) (string, error) {
	return t.data.recordTenant(collection, id)
}

// InTx on a transaction joins it.
func (t *txBackend) InTx(_ context.Context, fn func(tx storage.Backend) error) error {
	return fn(t)
}

func (t *txBackend) HealthCheck(_ context.Context) error { return nil }
func (t *txBackend) Close() error                        { return nil }

// dataset holds collections of records keyed by id, in insertion order.
type dataset struct {
	collections map[string][]storage.Record
	uniques     map[string][][]string
}

func newDataset(uniques map[string][][]string) *dataset {
	return &dataset{
		collections: make(map[string][]storage.Record),
		uniques:     uniques,
	}
}

func (d *dataset) clone() *dataset {
	cp := newDataset(d.uniques)
	for name, recs := range d.collections {
		out := make([]storage.Record, len(recs))
		for i, r := range recs {
			out[i] = r.Clone()
		}
		cp.collections[name] = out
	}
	return cp
}

func (d *dataset) recordTenant(collection, id string) (string, error) {
	for _, rec := range d.collections[collection] {
		if rec.String("id") == id {
			return rec.String(storage.TenantColumn), nil
		}
	}
	return "", storage.ErrNotFound
}

// visible applies the session tenant like a row-level security policy.
func visible(ctx context.Context, rec storage.Record) bool {
	sess, ok := storage.SessionFromContext(ctx)
	if !ok {
		return true
	}
	return rec.String(storage.TenantColumn) == sess.TenantID
}

func (d *dataset) find(ctx context.Context, q storage.Query) []storage.Record {
	var out []storage.Record
	for _, rec := range d.collections[q.Collection] {
		if visible(ctx, rec) && storage.Matches(rec, q.Filters) {
			out = append(out, rec.Clone())
		}
	}

	if len(q.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.OrderBy {
				c := storage.Compare(out[i][o.Field], out[j][o.Field])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	if out == nil {
		out = []storage.Record{}
	}
	return out
}

func (d *dataset) insert(ctx context.Context, collection string, rec storage.Record) error {
	id := rec.String("id")
	if id == "" {
		return fmt.Errorf("insert into %s: record has no id", collection)
	}
	if sess, ok := storage.SessionFromContext(ctx); ok && rec.String(storage.TenantColumn) != sess.TenantID {
		return fmt.Errorf("insert into %s: row violates tenant policy", collection)
	}

	for _, existing := range d.collections[collection] {
		if existing.String("id") == id {
			return storage.ErrConflict
		}
	}
	if d.violatesUnique(collection, rec, "") {
		return storage.ErrConflict
	}

	d.collections[collection] = append(d.collections[collection], rec.Clone())
	return nil
}

func (d *dataset) update(ctx context.Context, q storage.Query, patch storage.Record) (int64, error) {
	recs := d.collections[q.Collection]

	var idx []int
	for i, rec := range recs {
		if visible(ctx, rec) && storage.Matches(rec, q.Filters) {
			idx = append(idx, i)
		}
	}

	for _, i := range idx {
		next := recs[i].Clone()
		for k, v := range patch {
			next[k] = v
		}
		if d.violatesUnique(q.Collection, next, next.String("id")) {
			return 0, storage.ErrConflict
		}
	}

	for _, i := range idx {
		for k, v := range patch {
			recs[i][k] = v
		}
	}
	return int64(len(idx)), nil
}

func (d *dataset) delete(ctx context.Context, q storage.Query) int64 {
	recs := d.collections[q.Collection]
	kept := recs[:0]
	var n int64
	for _, rec := range recs {
		if visible(ctx, rec) && storage.Matches(rec, q.Filters) {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	d.collections[q.Collection] = kept
	return n
}

// violatesUnique reports whether rec duplicates a unique tuple of another
// record. skipID excludes the record being updated.
func (d *dataset) violatesUnique(collection string, rec storage.Record, skipID string) bool {
	for _, cols := range d.uniques[collection] {
		key := uniqueKey(rec, cols)
		for _, other := range d.collections[collection] {
			if skipID != "" && other.String("id") == skipID {
				continue
			}
			if uniqueKey(other, cols) == key {
				return true
			}
		}
	}
	return false
}

func uniqueKey(rec storage.Record, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(rec[c])
	}
	return strings.Join(parts, "\x00")
}
