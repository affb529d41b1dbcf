// Package postgres provides a PostgreSQL implementation of storage.Backend.
// It uses pgx/v5 for connection pooling and builds parameterized SQL from
// storage queries. Row-level security settings are applied with
// set_tenant_context at the start of every transaction when the context
// carries a storage.Session; statements run without one see no tenant rows.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetora/vetora/pkg/debug"
	"github.com/vetora/vetora/pkg/storage"
)

// querier is the subset of pgxpool.Pool and pgx.Tx the store uses.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL-backed storage.Backend.
type Store struct {
	pool *pgxpool.Pool
	tx   pgx.Tx // set on stores bound to a transaction
}

// Ensure Store implements the storage interfaces at compile time.
var (
	_ storage.Backend              = (*Store)(nil)
	_ storage.Transactor           = (*Store)(nil)
	_ storage.SessionContextSetter = (*Store)(nil)
	_ storage.TenantResolver       = (*Store)(nil)
)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SetSessionContext records tenant and role for row-level security. The
// settings are applied transaction-locally by every statement run with the
// returned context.
func (s *Store) SetSessionContext(ctx context.Context, tenantID, role string) (context.Context, error) {
	if tenantID == "" {
		return ctx, fmt.Errorf("session context: empty tenant")
	}
	debug.Log("storage", "session context", "tenant_id", tenantID, "role", role)
	return storage.WithSession(ctx, storage.Session{TenantID: tenantID, Role: role}), nil
}

// InTx runs fn inside a transaction. A store already bound to a transaction
// joins it.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.Backend) error) error {
	if s.tx != nil {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := applySession(ctx, tx); err != nil {
			return err
		}
		return fn(&Store{pool: s.pool, tx: tx})
	})
}

// run executes fn with the right querier: the bound transaction, a short
// transaction carrying the session settings, or the pool.
func (s *Store) run(ctx context.Context, fn func(q querier) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	if _, ok := storage.SessionFromContext(ctx); !ok {
		return fn(s.pool)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := applySession(ctx, tx); err != nil {
			return err
		}
		return fn(tx)
	})
}

// applySession sets app.tenant_id and app.role for the current transaction.
func applySession(ctx context.Context, tx pgx.Tx) error {
	sess, ok := storage.SessionFromContext(ctx)
	if !ok {
		return nil
	}
	if _, err := tx.Exec(ctx, "SELECT set_tenant_context($1, $2)", sess.TenantID, sess.Role); err != nil {
		return fmt.Errorf("setting tenant context: %w", err)
	}
	return nil
}

// RecordTenant asks record_tenant, which runs with its owner's rights, for
// the tenant of a record hidden by the session's policies.
func (s *Store) RecordTenant(ctx context.Context, collection, id string) (string, error) {
	var tenant *string
	err := s.run(ctx, func(db querier) error {
		return db.QueryRow(ctx, "SELECT record_tenant($1, $2)", collection, id).Scan(&tenant)
	})
	if err != nil {
		return "", fmt.Errorf("resolving tenant of %s %s: %w", collection, id, err)
	}
	if tenant == nil {
		return "", storage.ErrNotFound
	}
	return *tenant, nil
}

// Find returns the records matching q.
func (s *Store) Find(ctx context.Context, q storage.Query) ([]storage.Record, error) {
	sql, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}

	var out []storage.Record
	err = s.run(ctx, func(db querier) error {
		rows, err := db.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		maps, err := pgx.CollectRows(rows, pgx.RowToMap)
		if err != nil {
			return err
		}
		out = make([]storage.Record, len(maps))
		for i, m := range maps {
			out[i] = storage.Record(m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}
	return out, nil
}

// Insert adds a record.
func (s *Store) Insert(ctx context.Context, collection string, rec storage.Record) error {
	if rec.String("id") == "" {
		return fmt.Errorf("insert into %s: record has no id", collection)
	}

	cols := sortedKeys(rec)
	idents := make([]string, len(cols))
	params := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		idents[i] = ident(c)
		params[i] = "$" + strconv.Itoa(i+1)
		args[i] = rec[c]
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ident(collection), strings.Join(idents, ", "), strings.Join(params, ", "))

	err := s.run(ctx, func(db querier) error {
		_, err := db.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting into %s: %w", collection, err)
	}
	return nil
}

// Update patches matching records.
func (s *Store) Update(ctx context.Context, q storage.Query, patch storage.Record) (int64, error) {
	if len(patch) == 0 {
		return 0, fmt.Errorf("update %s: empty patch", q.Collection)
	}

	cols := sortedKeys(patch)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(q.Filters))
	for i, c := range cols {
		args = append(args, patch[c])
		sets[i] = ident(c) + " = $" + strconv.Itoa(len(args))
	}

	where, args, err := buildWhere(q.Filters, args)
	if err != nil {
		return 0, err
	}

	sql := fmt.Sprintf("UPDATE %s SET %s%s", ident(q.Collection), strings.Join(sets, ", "), where)

	var n int64
	err = s.run(ctx, func(db querier) error {
		tag, err := db.Exec(ctx, sql, args...)
		n = tag.RowsAffected()
		return err
	})
	if err != nil {
		if isDuplicateKey(err) {
			return 0, storage.ErrConflict
		}
		return 0, fmt.Errorf("updating %s: %w", q.Collection, err)
	}
	return n, nil
}

// Delete removes matching records.
func (s *Store) Delete(ctx context.Context, q storage.Query) (int64, error) {
	where, args, err := buildWhere(q.Filters, nil)
	if err != nil {
		return 0, err
	}
	sql := "DELETE FROM " + ident(q.Collection) + where

	var n int64
	err = s.run(ctx, func(db querier) error {
		tag, err := db.Exec(ctx, sql, args...)
		n = tag.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", q.Collection, err)
	}
	return n, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool. Stores bound to a transaction do not
// own the pool.
func (s *Store) Close() error {
	if s.tx == nil {
		s.pool.Close()
	}
	return nil
}

// buildSelect renders q as a SELECT statement.
func buildSelect(q storage.Query) (string, []any, error) {
	where, args, err := buildWhere(q.Filters, nil)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(ident(q.Collection))
	b.WriteString(where)

	if len(q.OrderBy) > 0 {
		parts := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			parts[i] = ident(o.Field)
			if o.Desc {
				parts[i] += " DESC"
			}
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}

	if q.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.Limit))
	}

	return b.String(), args, nil
}

// buildWhere renders filters as a WHERE clause, numbering parameters after
// the ones already in args.
func buildWhere(filters []storage.Filter, args []any) (string, []any, error) {
	if len(filters) == 0 {
		return "", args, nil
	}

	conds := make([]string, len(filters))
	for i, f := range filters {
		switch f.Op {
		case storage.OpEq, "":
			args = append(args, f.Value)
			conds[i] = ident(f.Field) + " = $" + strconv.Itoa(len(args))
		case storage.OpPrefix:
			p, ok := f.Value.(string)
			if !ok {
				return "", nil, fmt.Errorf("prefix filter on %s: value must be a string", f.Field)
			}
			args = append(args, escapeLike(p)+"%")
			conds[i] = ident(f.Field) + " LIKE $" + strconv.Itoa(len(args))
		default:
			return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}

	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// ident quotes a table or column name.
func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// escapeLike escapes LIKE wildcards so prefixes match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func sortedKeys(rec storage.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			slog.Debug("unique violation", "constraint", pgErr.ConstraintName)
			return true
		}
	}
	return false
}
