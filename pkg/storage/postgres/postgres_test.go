package postgres

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vetora/vetora/pkg/storage"
)

func init() {
	// Configure testcontainers to use podman when no Docker host is set.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
				// Ryuk needs privileged mode with podman.
				if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
					os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
				}
			}
		}
	}
}

// setupTestDB starts a PostgreSQL container and returns a migrated Store
// together with its connection string. Tests are skipped when no container
// runtime is available.
func setupTestDB(t *testing.T) (*Store, string) {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	// Skips instead of panicking when no container runtime is reachable.
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("vetora_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store, connStr
}

func seedKennel(t *testing.T, s *Store, id, tenant, code, status string) {
	t.Helper()
	err := s.Insert(context.Background(), "kennels", storage.Record{
		"id":        id,
		"tenant_id": tenant,
		"name":      "Kennel " + code,
		"code":      code,
		"status":    status,
	})
	if err != nil {
		t.Fatalf("seeding kennel %s: %v", id, err)
	}
}

func TestPostgres_InsertFind(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()

	seedKennel(t, s, "k1", "clinic-a", "A1", "available")
	seedKennel(t, s, "k2", "clinic-a", "A2", "occupied")
	seedKennel(t, s, "k3", "clinic-b", "B1", "available")

	recs, err := s.Find(ctx, storage.Query{
		Collection: "kennels",
		Filters: []storage.Filter{
			{Field: "tenant_id", Op: storage.OpEq, Value: "clinic-a"},
			{Field: "status", Op: storage.OpEq, Value: "available"},
		},
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(recs) != 1 || recs[0].String("id") != "k1" {
		t.Fatalf("got %v, want only k1", recs)
	}
	if got := recs[0].Float("daily_rate"); got != 0 {
		t.Errorf("daily_rate default = %v, want 0", got)
	}
	if recs[0].Time("created_at").IsZero() {
		t.Error("created_at default not populated")
	}
}

func TestPostgres_DuplicateConflict(t *testing.T) {
	s, _ := setupTestDB(t)

	seedKennel(t, s, "k1", "clinic-a", "A1", "available")

	err := s.Insert(context.Background(), "kennels", storage.Record{
		"id": "k2", "tenant_id": "clinic-a", "name": "dup", "code": "A1",
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Errorf("duplicate code: got %v, want ErrConflict", err)
	}

	// Same code in another tenant is fine.
	seedKennel(t, s, "k3", "clinic-b", "A1", "available")
}

func TestPostgres_PrefixOrderLimit(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()

	seedKennel(t, s, "k1", "clinic-a", "R_1", "available")
	seedKennel(t, s, "k2", "clinic-a", "R_2", "available")
	seedKennel(t, s, "k3", "clinic-a", "RX3", "available")

	recs, err := s.Find(ctx, storage.Query{
		Collection: "kennels",
		Filters:    []storage.Filter{{Field: "code", Op: storage.OpPrefix, Value: "R_"}},
		OrderBy:    []storage.Order{{Field: "code", Desc: true}},
		Limit:      1,
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(recs) != 1 || recs[0].String("code") != "R_2" {
		t.Errorf("got %v, want R_2 (underscore must match literally)", recs)
	}
}

func TestPostgres_UpdateCompareAndSet(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()

	seedKennel(t, s, "k1", "clinic-a", "A1", "available")

	q := storage.Query{
		Collection: "kennels",
		Filters: []storage.Filter{
			{Field: "id", Op: storage.OpEq, Value: "k1"},
			{Field: "status", Op: storage.OpEq, Value: "available"},
		},
	}

	n, err := s.Update(ctx, q, storage.Record{"status": "occupied"})
	if err != nil || n != 1 {
		t.Fatalf("first update: n=%d err=%v", n, err)
	}

	n, err = s.Update(ctx, q, storage.Record{"status": "occupied"})
	if err != nil || n != 0 {
		t.Errorf("second update: n=%d err=%v, want 0 rows", n, err)
	}
}

func TestPostgres_InTxRollback(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()

	seedKennel(t, s, "k1", "clinic-a", "A1", "available")

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx storage.Backend) error {
		if _, err := tx.Update(ctx, storage.Query{
			Collection: "kennels",
			Filters:    []storage.Filter{{Field: "id", Op: storage.OpEq, Value: "k1"}},
		}, storage.Record{"status": "occupied"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want boom", err)
	}

	recs, _ := s.Find(ctx, storage.Query{
		Collection: "kennels",
		Filters:    []storage.Filter{{Field: "id", Op: storage.OpEq, Value: "k1"}},
	})
	if recs[0].String("status") != "available" {
		t.Errorf("status = %s, want available after rollback", recs[0].String("status"))
	}
}

func TestPostgres_Delete(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()

	seedKennel(t, s, "k1", "clinic-a", "A1", "available")
	seedKennel(t, s, "k2", "clinic-b", "B1", "available")

	n, err := s.Delete(ctx, storage.Query{
		Collection: "kennels",
		Filters:    []storage.Filter{{Field: "tenant_id", Op: storage.OpEq, Value: "clinic-a"}},
	})
	if err != nil || n != 1 {
		t.Errorf("delete: n=%d err=%v, want 1", n, err)
	}
}

func TestPostgres_RowLevelSecurity(t *testing.T) {
	admin, connStr := setupTestDB(t)
	ctx := context.Background()

	seedKennel(t, admin, "k1", "clinic-a", "A1", "available")
	seedKennel(t, admin, "k2", "clinic-b", "B1", "available")

	// Superusers bypass RLS; connect as an unprivileged application role.
	for _, stmt := range []string{
		"CREATE ROLE app LOGIN PASSWORD 'app'",
		"GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA public TO app",
	} {
		if _, err := admin.pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	app, err := New(ctx, Config{DSN: strings.Replace(connStr, "test:test@", "app:app@", 1), MaxConns: 2, MinConns: 1})
	if err != nil {
		t.Fatalf("connecting as app: %v", err)
	}
	t.Cleanup(func() { app.Close() })

	sessCtx, err := app.SetSessionContext(ctx, "clinic-a", "vet")
	if err != nil {
		t.Fatalf("SetSessionContext: %v", err)
	}

	// No tenant filter: the policy alone must hide clinic-b.
	recs, err := app.Find(sessCtx, storage.Query{Collection: "kennels"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(recs) != 1 || recs[0].String("tenant_id") != "clinic-a" {
		t.Errorf("got %v, want only clinic-a rows", recs)
	}

	n, err := app.Update(sessCtx, storage.Query{
		Collection: "kennels",
		Filters:    []storage.Filter{{Field: "id", Op: storage.OpEq, Value: "k2"}},
	}, storage.Record{"status": "maintenance"})
	if err != nil || n != 0 {
		t.Errorf("cross-tenant update: n=%d err=%v, want 0 rows", n, err)
	}

	// Without a session the policies hide every tenant.
	none, err := app.Find(ctx, storage.Query{Collection: "kennels"})
	if err != nil || len(none) != 0 {
		t.Errorf("sessionless find: %d rows err=%v, want 0", len(none), err)
	}
	n, err = app.Update(ctx, storage.Query{
		Collection: "kennels",
		Filters:    []storage.Filter{{Field: "id", Op: storage.OpEq, Value: "k1"}},
	}, storage.Record{"status": "maintenance"})
	if err != nil || n != 0 {
		t.Errorf("sessionless update: n=%d err=%v, want 0 rows", n, err)
	}
	err = app.Insert(ctx, "kennels", storage.Record{
		"id": "k9", "tenant_id": "clinic-a", "name": "Kennel A9", "code": "A9",
	})
	if err == nil {
		t.Error("sessionless insert succeeded, want policy violation")
	}

	// Ownership still tells a foreign record from a missing one.
	scope := storage.NewScope(app, "clinic-a")
	if err := scope.Ownership(sessCtx, "kennels", "k1"); err != nil {
		t.Errorf("own kennel: %v", err)
	}
	if err := scope.Ownership(sessCtx, "kennels", "k2"); !errors.Is(err, storage.ErrTenantMismatch) {
		t.Errorf("foreign kennel: got %v, want ErrTenantMismatch", err)
	}
	if err := scope.Ownership(ctx, "kennels", "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing kennel: got %v, want ErrNotFound", err)
	}
	if _, err := app.RecordTenant(ctx, "profiles", "k1"); err == nil {
		t.Error("RecordTenant on profiles succeeded, want error")
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	s, _ := setupTestDB(t)
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestPostgres_MigrateIdempotent(t *testing.T) {
	s, _ := setupTestDB(t)
	if err := s.migrate(context.Background()); err != nil {
		t.Errorf("second migrate: %v", err)
	}
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_later.sql":  {Data: []byte("SELECT 10")},
		"migrations/002_second.sql": {Data: []byte("SELECT 2")},
		"migrations/README.md":      {Data: []byte("ignored")},
	}

	got, err := loadMigrations(fsys)
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d migrations, want 2", len(got))
	}
	if got[0].version != 2 || got[1].version != 10 {
		t.Errorf("order = %d,%d, want 2,10", got[0].version, got[1].version)
	}

	dup := fstest.MapFS{
		"migrations/002_a.sql": {Data: []byte("SELECT 1")},
		"migrations/002_b.sql": {Data: []byte("SELECT 1")},
	}
	if _, err := loadMigrations(dup); err == nil {
		t.Error("expected error for duplicate versions")
	}
}

func TestLoadMigrations_Embedded(t *testing.T) {
	got, err := loadMigrations(migrationFiles)
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	if len(got) == 0 || got[0].version != 1 {
		t.Fatalf("first embedded migration should be version 1, got %v", got)
	}
}

func TestBuildSelect(t *testing.T) {
	sql, args, err := buildSelect(storage.Query{
		Collection: "hospitalizations",
		Filters: []storage.Filter{
			{Field: "tenant_id", Op: storage.OpEq, Value: "clinic-a"},
			{Field: "hospitalization_number", Op: storage.OpPrefix, Value: "H-2026-"},
		},
		OrderBy: []storage.Order{{Field: "hospitalization_number", Desc: true}},
		Limit:   1,
	})
	if err != nil {
		t.Fatalf("buildSelect: %v", err)
	}

	want := `SELECT * FROM "hospitalizations" WHERE "tenant_id" = $1 AND "hospitalization_number" LIKE $2 ORDER BY "hospitalization_number" DESC LIMIT 1`
	if sql != want {
		t.Errorf("sql =\n%s\nwant\n%s", sql, want)
	}
	if len(args) != 2 || args[0] != "clinic-a" || args[1] != "H-2026-%" {
		t.Errorf("args = %v", args)
	}
}

func TestBuildWhere_ParameterOffset(t *testing.T) {
	where, args, err := buildWhere([]storage.Filter{
		{Field: "id", Op: storage.OpEq, Value: "k1"},
	}, []any{"occupied"})
	if err != nil {
		t.Fatalf("buildWhere: %v", err)
	}
	if where != ` WHERE "id" = $2` {
		t.Errorf("where = %q", where)
	}
	if len(args) != 2 {
		t.Errorf("args = %v", args)
	}

	if _, _, err := buildWhere([]storage.Filter{{Field: "x", Op: "gt", Value: 1}}, nil); err == nil {
		t.Error("expected error for unsupported op")
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Errorf("escapeLike = %q", got)
	}
}

func TestIdent(t *testing.T) {
	if got := ident(`kennels"; DROP TABLE pets; --`); got != `"kennels""; DROP TABLE pets; --"` {
		t.Errorf("ident = %q", got)
	}
}
