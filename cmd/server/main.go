// Command server runs the vetora clinic API.
//
// Configuration is read from a YAML file (VETORA_CONFIG, ./config.yaml or
// /etc/vetora/config.yaml) with VETORA_* environment overrides:
//
//	VETORA_PORT          - Listen port (default: 8080)
//	VETORA_STORAGE       - Storage type: "memory" or "postgres" (default: "memory")
//	VETORA_POSTGRES_DSN  - PostgreSQL connection string
//	VETORA_SEED_FILE     - YAML fixtures for the memory store
//	VETORA_AUTH_TYPE     - "none", "apikey" or "jwt" (default: "none")
//	VETORA_DEV_SUBJECT   - Profile id used when auth type is "none"
//	VETORA_REDIS_ADDR    - Redis address for the shared rate limiter
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vetora/vetora/pkg/auth"
	"github.com/vetora/vetora/pkg/auth/apikey"
	"github.com/vetora/vetora/pkg/auth/jwt"
	"github.com/vetora/vetora/pkg/auth/noop"
	"github.com/vetora/vetora/pkg/auth/redislimit"
	"github.com/vetora/vetora/pkg/config"
	"github.com/vetora/vetora/pkg/debug"
	"github.com/vetora/vetora/pkg/hospitalization"
	"github.com/vetora/vetora/pkg/storage"
	"github.com/vetora/vetora/pkg/storage/memory"
	"github.com/vetora/vetora/pkg/storage/postgres"
	transporthttp "github.com/vetora/vetora/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	ctx := context.Background()

	backend, err := newBackend(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	authn, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return err
	}
	resolver := auth.NewResolver(authn, auth.NewBackendProfiles(backend), logger)

	gateOpts := []auth.GateOption{auth.WithLogger(logger)}
	if cfg.RateLimit.Enabled {
		limiter, closeLimiter, err := newRateLimiter(ctx, cfg.RateLimit)
		if err != nil {
			return err
		}
		defer closeLimiter()
		gateOpts = append(gateOpts, auth.WithRateLimiter(limiter))
	}
	gate := auth.NewGate(resolver, backend, gateOpts...)

	svc := hospitalization.NewService(hospitalization.WithLogger(logger))

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}

	srv := transporthttp.NewServer(gate, svc, backend,
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithMetricsPath(metricsPath),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	slog.Info("vetora starting",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
		"rate_limit", cfg.RateLimit.Enabled,
	)
	return srv.ListenAndServe()
}

// newBackend opens the configured storage backend.
func newBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Type {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres", "max_conns", cfg.Postgres.MaxConns)
		return store, nil
	default:
		store := memory.New(
			memory.WithUnique(hospitalization.HospitalizationsCollection, storage.TenantColumn, "hospitalization_number"),
			memory.WithUnique(hospitalization.KennelsCollection, storage.TenantColumn, "code"),
		)
		if cfg.SeedFile != "" {
			n, err := store.LoadSeedFile(ctx, cfg.SeedFile)
			if err != nil {
				return nil, err
			}
			slog.Info("seed loaded", "file", cfg.SeedFile, "records", n)
		}
		slog.Info("storage enabled", "type", "memory")
		return store, nil
	}
}

// newAuthenticator builds the authenticator chain. API keys are accepted
// next to identity provider tokens so integrations keep working; the key
// authenticator runs first and leaves JWT-shaped bearer tokens alone.
func newAuthenticator(cfg config.AuthConfig) (auth.Authenticator, error) {
	chain := &auth.AuthChain{}

	if cfg.Type == "none" {
		slog.Warn("authentication disabled, all requests act as the dev subject", "subject", cfg.DevSubject)
		chain.Authenticators = append(chain.Authenticators, &noop.Authenticator{Subject: cfg.DevSubject})
		return chain, nil
	}

	if len(cfg.APIKeys) > 0 {
		entries := make([]apikey.RawKeyEntry, len(cfg.APIKeys))
		for i, k := range cfg.APIKeys {
			entries[i] = apikey.RawKeyEntry{Key: k.Key, Identity: auth.Identity{Subject: k.Subject}}
		}
		chain.Authenticators = append(chain.Authenticators, apikey.New(entries))
	}

	switch cfg.Type {
	case "jwt":
		chain.Authenticators = append(chain.Authenticators, jwt.New(jwt.Config{
			Issuer:     cfg.JWT.Issuer,
			Audience:   cfg.JWT.Audience,
			JWKSURL:    cfg.JWT.JWKSURL,
			EmailClaim: cfg.JWT.EmailClaim,
			CookieName: cfg.JWT.CookieName,
			CacheTTL:   cfg.JWT.CacheTTL,
		}))
	case "apikey":
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
	return chain, nil
}

// newRateLimiter returns the configured limiter and a function releasing
// its resources.
func newRateLimiter(ctx context.Context, cfg config.RateLimitConfig) (auth.RateLimiter, func(), error) {
	limits := make(map[string]auth.Limit, len(cfg.Limits))
	for name, l := range cfg.Limits {
		limits[name] = auth.Limit{RequestsPerMinute: l.RequestsPerMinute, Burst: l.Burst}
	}
	fallback := auth.Limit{RequestsPerMinute: cfg.Default.RequestsPerMinute, Burst: cfg.Default.Burst}

	if cfg.Backend != "redis" {
		return auth.NewInProcessLimiter(limits, fallback), func() {}, nil
	}

	client, err := newRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("rate limiting shared through redis", "addr", cfg.Redis.Addr)
	return redislimit.New(client, limits, fallback), func() { _ = client.Close() }, nil
}

func newRedisClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
