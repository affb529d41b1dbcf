// Package integration provides integration tests for the vetora API.
//
// Tests run against the full HTTP stack (configuration file, seeded
// memory store, API key authentication, rate limiter and middleware)
// started in-process using net/http/httptest.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/vetora/vetora/pkg/auth"
	"github.com/vetora/vetora/pkg/auth/apikey"
	"github.com/vetora/vetora/pkg/config"
	"github.com/vetora/vetora/pkg/hospitalization"
	"github.com/vetora/vetora/pkg/storage"
	"github.com/vetora/vetora/pkg/storage/memory"
	transporthttp "github.com/vetora/vetora/pkg/transport/http"
)

// Fixture ids from testdata/clinics.yaml.
const (
	petBiscuit = "2d0c8a41-7b3e-4f1a-9c52-6e8d0f1a2b01"
	petPepper  = "2d0c8a41-7b3e-4f1a-9c52-6e8d0f1a2b02"
	petOlive   = "2d0c8a41-7b3e-4f1a-9c52-6e8d0f1a2b03"
	petMango   = "2d0c8a41-7b3e-4f1a-9c52-6e8d0f1a2c01"

	kennelN1 = "9a4e7c10-3f2b-4d8a-b1c6-5e0f2a3b4c01"
	kennelN2 = "9a4e7c10-3f2b-4d8a-b1c6-5e0f2a3b4c02"
	kennelN3 = "9a4e7c10-3f2b-4d8a-b1c6-5e0f2a3b4c03"
	kennelN4 = "9a4e7c10-3f2b-4d8a-b1c6-5e0f2a3b4c04"
	kennelS1 = "9a4e7c10-3f2b-4d8a-b1c6-5e0f2a3b4d01"
)

// testEnv holds the shared server for all integration tests.
var testEnv *TestEnvironment

// TestEnvironment holds the vetora server and its store.
type TestEnvironment struct {
	Server *httptest.Server
	Store  *memory.Store
}

// TestMain starts the vetora server before running tests.
func TestMain(m *testing.M) {
	env, err := setupTestEnvironment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up test environment: %v\n", err)
		os.Exit(1)
	}
	testEnv = env
	code := m.Run()
	testEnv.Teardown()
	os.Exit(code)
}

// setupTestEnvironment wires the server the way cmd/server does, from
// testdata/config.yaml.
func setupTestEnvironment() (*TestEnvironment, error) {
	cfg, err := config.Load("testdata/config.yaml")
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memory.New(
		memory.WithUnique(hospitalization.HospitalizationsCollection, storage.TenantColumn, "hospitalization_number"),
		memory.WithUnique(hospitalization.KennelsCollection, storage.TenantColumn, "code"),
	)
	if _, err := store.LoadSeedFile(context.Background(), cfg.Storage.SeedFile); err != nil {
		return nil, err
	}

	entries := make([]apikey.RawKeyEntry, len(cfg.Auth.APIKeys))
	for i, k := range cfg.Auth.APIKeys {
		entries[i] = apikey.RawKeyEntry{Key: k.Key, Identity: auth.Identity{Subject: k.Subject}}
	}
	chain := &auth.AuthChain{Authenticators: []auth.Authenticator{apikey.New(entries)}}

	limits := make(map[string]auth.Limit, len(cfg.RateLimit.Limits))
	for name, l := range cfg.RateLimit.Limits {
		limits[name] = auth.Limit{RequestsPerMinute: l.RequestsPerMinute, Burst: l.Burst}
	}
	limiter := auth.NewInProcessLimiter(limits, auth.Limit{
		RequestsPerMinute: cfg.RateLimit.Default.RequestsPerMinute,
		Burst:             cfg.RateLimit.Default.Burst,
	})

	gate := auth.NewGate(
		auth.NewResolver(chain, auth.NewBackendProfiles(store), logger),
		store,
		auth.WithRateLimiter(limiter),
		auth.WithLogger(logger),
	)
	srv := transporthttp.NewServer(gate, hospitalization.NewService(hospitalization.WithLogger(logger)), store,
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithMetricsPath(cfg.Observability.Metrics.Path),
		transporthttp.WithLogger(logger),
	)

	return &TestEnvironment{
		Server: httptest.NewServer(srv.Handler()),
		Store:  store,
	}, nil
}

// Teardown stops the server.
func (env *TestEnvironment) Teardown() {
	if env.Server != nil {
		env.Server.Close()
	}
}

// BaseURL returns the server URL.
func (env *TestEnvironment) BaseURL() string {
	return env.Server.URL
}

// call sends a request as the holder of key. A nil body sends none.
func call(t *testing.T, method, path, key string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, testEnv.BaseURL()+path, r)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set(apikey.HeaderName, key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// getURL performs a GET request without credentials.
func getURL(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	return resp
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(data)
}

// decodeJSON decodes the response body into target.
func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

// expectStatus fails the test when the response status differs.
func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, readBody(t, resp))
	}
}

// kennelStatus reads a kennel's status straight from the store.
func kennelStatus(t *testing.T, id string) string {
	t.Helper()
	recs, err := testEnv.Store.Find(context.Background(), storage.Query{
		Collection: hospitalization.KennelsCollection,
		Filters:    []storage.Filter{{Field: "id", Op: storage.OpEq, Value: id}},
	})
	if err != nil || len(recs) != 1 {
		t.Fatalf("reading kennel %s: %v", id, err)
	}
	return recs[0].String("status")
}
