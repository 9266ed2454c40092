// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/taibuivan/payhub/internal/platform/config"
	pgstore "github.com/taibuivan/payhub/internal/platform/postgres"
	redisstore "github.com/taibuivan/payhub/internal/platform/redis"
	"github.com/taibuivan/payhub/internal/platform/sec"
	"github.com/taibuivan/payhub/internal/users/auth"
)

// environment carries what every command shares: configuration, logger and
// the terminal input.
type environment struct {
	cfg   *config.Config
	log   *slog.Logger
	stdin io.Reader
}

// load parses the configuration once, before any command runs.
func (env *environment) load(_ *cli.Context) error {
	if env.cfg != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	env.cfg = cfg
	return nil
}

// connection is an open database (and, for the redis backend, cache) handle.
type connection struct {
	pool  *pgxpool.Pool
	redis *goredis.Client
}

func (conn *connection) Close() {
	if conn.redis != nil {
		_ = conn.redis.Close()
	}
	conn.pool.Close()
}

// authService connects to the configured stores and builds the service the
// API server would use. Federated sign-in is not needed offline.
func (env *environment) authService(ctx context.Context) (*auth.Service, *connection, error) {
	pool, err := pgstore.NewPool(ctx, env.cfg.DatabaseURL, 0, env.log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	conn := &connection{pool: pool}
	db := pgstore.OpenDB(pool)

	var sessions auth.SessionStore
	switch env.cfg.Session.Backend {
	case config.SessionBackendRedis:
		conn.redis, err = redisstore.NewClient(ctx, env.cfg.RedisURL, env.log)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		sessions = auth.NewRedisSessionStore(conn.redis)
	case config.SessionBackendMemory:
		sessions = auth.NewMemorySessionStore()
	default:
		sessions = auth.NewSessionStore(db, env.cfg.Session.Table)
	}

	service := auth.NewService(
		auth.NewUserDirectory(db),
		sessions,
		sec.NewHasher(env.cfg.HashConcurrency, sec.DefaultScryptParams),
		sec.NewCookieSigner(env.cfg.Session.Secret, auth.CookieIssuer),
		nil,
		auth.Config{
			SessionTTL:   env.cfg.Session.TTL,
			StoreTimeout: env.cfg.StoreTimeout,
			CookieName:   env.cfg.Session.CookieName,
		},
	)
	return service, conn, nil
}
