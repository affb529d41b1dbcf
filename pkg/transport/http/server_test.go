package http

import (
	"context"
	"encoding/json"
	"net"
	gohttp "net/http"
	"testing"
	"time"

	"github.com/vetora/vetora/pkg/auth"
	"github.com/vetora/vetora/pkg/hospitalization"
	"github.com/vetora/vetora/pkg/storage"
	"github.com/vetora/vetora/pkg/storage/memory"
)

// slowBackend delays health checks so readiness checks stay in flight.
type slowBackend struct {
	storage.Backend
	delay time.Duration
}

func (b *slowBackend) HealthCheck(ctx context.Context) error {
	select {
	case <-time.After(b.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newTestServer(backend storage.Backend, opts ...ServerOption) *Server {
	gate := auth.NewGate(auth.NewResolver(&auth.AuthChain{}, auth.NewBackendProfiles(backend), nil), backend)
	return NewServer(gate, hospitalization.NewService(), backend, opts...)
}

func TestServerStartsAndAcceptsRequests(t *testing.T) {
	srv := newTestServer(memory.New(), WithAddr("127.0.0.1:0"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	addr := ln.Addr().String()

	go srv.ServeOn(ln)
	time.Sleep(50 * time.Millisecond)

	resp, err := gohttp.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != gohttp.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, gohttp.StatusOK)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("default middleware did not set X-Request-ID")
	}

	var got map[string]string
	json.NewDecoder(resp.Body).Decode(&got)
	if got["status"] != "ok" {
		t.Errorf("status = %q, want ok", got["status"])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func TestServerGracefulShutdown(t *testing.T) {
	backend := &slowBackend{Backend: memory.New(), delay: 200 * time.Millisecond}
	srv := newTestServer(backend,
		WithAddr("127.0.0.1:0"),
		WithShutdownTimeout(5*time.Second),
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	addr := ln.Addr().String()

	go srv.ServeOn(ln)
	time.Sleep(50 * time.Millisecond)

	responseCh := make(chan int, 1)
	go func() {
		resp, err := gohttp.Get("http://" + addr + "/readyz")
		if err != nil {
			responseCh <- 0
			return
		}
		defer resp.Body.Close()
		responseCh <- resp.StatusCode
	}()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)

	status := <-responseCh
	if status != gohttp.StatusOK {
		t.Errorf("slow request status = %d, want %d", status, gohttp.StatusOK)
	}
}

func TestServerFunctionalOptions(t *testing.T) {
	srv := newTestServer(memory.New(),
		WithAddr(":9999"),
		WithMaxBodySize(1024),
		WithMetricsPath("/internal/metrics"),
		WithTimeouts(5*time.Second, 15*time.Second),
		WithShutdownTimeout(10*time.Second),
	)

	if srv.config.Addr != ":9999" {
		t.Errorf("addr = %q, want %q", srv.config.Addr, ":9999")
	}
	if srv.config.MaxBodySize != 1024 || srv.adapter.config.MaxBodySize != 1024 {
		t.Errorf("max body size = %d, want %d", srv.config.MaxBodySize, 1024)
	}
	if srv.adapter.config.MetricsPath != "/internal/metrics" {
		t.Errorf("metrics path = %q", srv.adapter.config.MetricsPath)
	}
	if srv.httpServer.ReadTimeout != 5*time.Second || srv.httpServer.WriteTimeout != 15*time.Second {
		t.Errorf("timeouts = %v, %v", srv.httpServer.ReadTimeout, srv.httpServer.WriteTimeout)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want %v", srv.config.ShutdownTimeout, 10*time.Second)
	}
}
