// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the PayHub HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis (redis session backend only).
//  5. Run database migrations (idempotent).
//  6. Build the session store, credential hasher and cookie signer.
//  7. Wire health handlers and domain handlers.
//  8. Run the HTTP server and the session pruner until a shutdown signal.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/payhub/internal/api"
	"github.com/taibuivan/payhub/internal/billing"
	"github.com/taibuivan/payhub/internal/platform/config"
	"github.com/taibuivan/payhub/internal/platform/constants"
	"github.com/taibuivan/payhub/internal/platform/migration"
	"github.com/taibuivan/payhub/internal/platform/oidc"
	pgstore "github.com/taibuivan/payhub/internal/platform/postgres"
	redisstore "github.com/taibuivan/payhub/internal/platform/redis"
	"github.com/taibuivan/payhub/internal/platform/sec"
	"github.com/taibuivan/payhub/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log := rawLog.With(slog.String("app", "payhub"))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "payhub"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	if cfg.UsesDevSecret() {
		log.Warn("session_secret_placeholder", slog.String("hint", "set SESSION_SECRET outside development"))
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("session_backend", cfg.Session.Backend),
		slog.Bool("federated_sign_in", cfg.OIDCEnabled()),
	)

	// Misconfiguration should fail fast rather than hang.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), constants.StartupTimeout)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, constants.GlobalRequestTimeout, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	db := pgstore.OpenDB(pool)

	// ── 4. Redis ──────────────────────────────────────────────────────────
	var rdb *goredis.Client
	if cfg.Session.Backend == config.SessionBackendRedis {
		rdb, err = redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing_redis_client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_failed", slog.Any("error", cerr))
			}
		}()
	}

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Auth Service ───────────────────────────────────────────────────
	var sessions auth.SessionStore
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		sessions = auth.NewRedisSessionStore(rdb)
	case config.SessionBackendMemory:
		log.Warn("session_store_in_memory", slog.String("hint", "sessions are lost on restart"))
		sessions = auth.NewMemorySessionStore()
	default:
		postgresSessions := auth.NewSessionStore(db, cfg.Session.Table)
		if cfg.Session.CreateTable {
			must(log, postgresSessions.EnsureTable(startupCtx), "create session table")
		}
		sessions = postgresSessions
	}

	var identities auth.IdentityVerifier
	if cfg.OIDCEnabled() {
		verifier, err := oidc.NewVerifier(startupCtx, oidc.Config{
			IssuerURL: cfg.OIDC.IssuerURL,
			ClientID:  cfg.OIDC.ClientID,
			Provider:  cfg.OIDC.Provider,
		})
		must(log, err, "discover oidc issuer")
		identities = verifier
	}

	authService := auth.NewService(
		auth.NewUserDirectory(db),
		sessions,
		sec.NewHasher(cfg.HashConcurrency, sec.DefaultScryptParams),
		sec.NewCookieSigner(cfg.Session.Secret, auth.CookieIssuer),
		identities,
		auth.Config{
			SessionTTL:    cfg.Session.TTL,
			StoreTimeout:  cfg.StoreTimeout,
			CookieName:    cfg.Session.CookieName,
			SecureCookies: cfg.IsProduction(),
		},
	)

	// ── 7. Handlers ───────────────────────────────────────────────────────
	healthDeps := api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
	}
	if rdb != nil {
		healthDeps.CheckSessionStore = func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		}
	}
	liveness, readiness := api.NewHealthHandlers(healthDeps, log)

	billingService := billing.NewService(billing.NewPostgresRepository(db), log)

	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService),
		Billing:   billing.NewHandler(billingService),
	}

	// ── 8. Run ────────────────────────────────────────────────────────────
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	server := api.NewServer(rootCtx, cfg, log, authService, handlers)

	group, groupCtx := errgroup.WithContext(rootCtx)

	group.Go(func() error {
		return server.ListenAndServe()
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting_down_server", slog.Duration("timeout", constants.ShutdownTimeout))
		return server.Shutdown(constants.ShutdownTimeout)
	})

	group.Go(func() error {
		pruneSessions(groupCtx, log, authService, constants.SessionPruneInterval)
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server_stopped_with_error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped_cleanly")
}

// pruneSessions deletes expired sessions every interval until ctx ends.
func pruneSessions(ctx context.Context, log *slog.Logger, service *auth.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneCtx, cancel := context.WithTimeout(ctx, interval/2)
			removed, err := service.PruneSessions(pruneCtx)
			cancel()

			if err != nil {
				log.Error("session_prune_failed", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				log.Info("session_prune_completed", slog.Int64("removed", removed))
			}
		}
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned
// and handled explicitly.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
