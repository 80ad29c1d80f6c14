// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/holomush/holoauth/internal/auth/redisstore"
	"github.com/holomush/holoauth/internal/observability"
	"github.com/holomush/holoauth/internal/web"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// Getenv reads secrets.
	// Default: os.Getenv
	Getenv func(string) string

	// LogWriter receives log output.
	// Default: os.Stderr
	LogWriter io.Writer

	// PoolFactory opens the PostgreSQL pool.
	// Default: store.OpenPool with store.DefaultConnectOptions
	PoolFactory func(ctx context.Context, url string) (*pgxpool.Pool, error)

	// RedisFactory connects to Redis.
	// Default: redisstore.Dial
	RedisFactory func(ctx context.Context, opts redisstore.Options) (*redis.Client, error)

	// APIServerFactory creates the API server.
	// Default: web.NewServer
	APIServerFactory func(addr string, handler http.Handler) Server

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

// MigrateDeps contains injectable dependencies for the migrate command.
type MigrateDeps struct {
	// Getenv reads DATABASE_URL.
	// Default: os.Getenv
	Getenv func(string) string

	// MigratorFactory creates a migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)
}

// Server interface wraps the methods used from web.Server.
type Server interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Server
	Metrics() *observability.Metrics
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

var _ Server = (*web.Server)(nil)
