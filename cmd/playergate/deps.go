// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/playergate/playergate/internal/api"
	"github.com/playergate/playergate/internal/config"
	"github.com/playergate/playergate/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// StoreConnector connects to the database with bounded retry.
	// Default: store.Connect
	StoreConnector func(ctx context.Context, url string, maxWait time.Duration) (Store, error)

	// Migrator runs pending migrations for --auto-migrate.
	// Default: runMigrationsUp
	Migrator func(databaseURL string) error

	// TLSConfigurer builds the TLS config for the API listener.
	// Default: loadServeTLS
	TLSConfigurer func(cfg config.TLSConfig) (*cryptotls.Config, error)

	// APIServerFactory creates the public API server.
	// Default: api.NewServer
	APIServerFactory func(addr string, svc api.AuthService, opts ...api.Option) (APIServer, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

// Store interface wraps the methods the serve command uses from store.Store.
type Store interface {
	Pool() *pgxpool.Pool
	Ping(ctx context.Context) error
	Close()
}

// APIServer interface wraps the methods used from api.Server.
type APIServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
