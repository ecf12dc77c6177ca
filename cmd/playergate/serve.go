// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/playergate/playergate/internal/api"
	"github.com/playergate/playergate/internal/auth"
	authpg "github.com/playergate/playergate/internal/auth/postgres"
	"github.com/playergate/playergate/internal/config"
	"github.com/playergate/playergate/internal/logging"
	"github.com/playergate/playergate/internal/observability"
	"github.com/playergate/playergate/internal/store"
	"github.com/playergate/playergate/internal/tls"
	"github.com/playergate/playergate/internal/xdg"
)

// shutdownTimeout bounds graceful drain of the HTTP servers.
const shutdownTimeout = 5 * time.Second

// readinessPingTimeout bounds the store ping behind the readiness probe.
const readinessPingTimeout = 2 * time.Second

// serveFlags holds the serve-only flags that are not config overrides.
type serveFlags struct {
	autoMigrate bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	sf := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API server",
		Long: `Start the PlayerGate API server, serving registration, login, and
token resolution over JSON HTTP, plus a separate observability
listener with Prometheus metrics and health probes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, sf, nil)
		},
	}

	// Flag names are config keys so they layer over file and env values.
	cmd.Flags().String("server.addr", ":8080", "API listen address")
	cmd.Flags().String("server.metrics_addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().Bool("server.tls.enabled", false, "serve the API over TLS")
	cmd.Flags().String("log.format", "json", "log format (json or text)")
	cmd.Flags().String("log.level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&sf.autoMigrate, "auto-migrate", true, "run pending database migrations at startup")

	return cmd
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, sf *serveFlags, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}

	// Set up default factories
	if deps.StoreConnector == nil {
		deps.StoreConnector = func(ctx context.Context, url string, maxWait time.Duration) (Store, error) {
			return store.Connect(ctx, url, maxWait)
		}
	}
	if deps.Migrator == nil {
		deps.Migrator = runMigrationsUp
	}
	if deps.TLSConfigurer == nil {
		deps.TLSConfigurer = loadServeTLS
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(addr string, svc api.AuthService, opts ...api.Option) (APIServer, error) {
			return api.NewServer(addr, svc, opts...)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("playergate", version, cfg.Log.Format, cfg.Log.Level)

	if cfg.UsingInsecureSecret() {
		slog.Warn("auth.token_secret is the built-in development default; " +
			"anyone can forge tokens — set PLAYERGATE_AUTH_TOKEN_SECRET before serving real traffic")
	}

	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required (set DATABASE_URL)")
	}

	if sf.autoMigrate {
		slog.Info("running pending migrations")
		if err := deps.Migrator(cfg.Database.URL); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
		}
	}

	st, err := deps.StoreConnector(ctx, cfg.Database.URL, cfg.Database.ConnectTimeout)
	if err != nil {
		return err
	}
	defer st.Close()
	slog.Info("connected to database")

	codec, err := auth.NewHMACTokenCodec(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	service, err := auth.NewService(
		authpg.NewUserRepository(st.Pool()),
		auth.NewArgon2idHasher(),
		codec,
		cfg.Auth.StoreTimeout,
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Observability server first so the API server can record metrics.
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Server.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Server.MetricsAddr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), readinessPingTimeout)
			defer pingCancel()
			return st.Ping(pingCtx) == nil
		})
		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return oops.With("operation", "start observability server").Wrap(obsErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
	}

	apiOpts := []api.Option{}
	if metrics != nil {
		apiOpts = append(apiOpts, api.WithMetrics(metrics))
	}
	if cfg.Server.TLS.Enabled {
		tlsConfig, tlsErr := deps.TLSConfigurer(cfg.Server.TLS)
		if tlsErr != nil {
			stopServer(obsServer, "observability")
			return oops.With("operation", "load TLS config").Wrap(tlsErr)
		}
		apiOpts = append(apiOpts, api.WithTLS(tlsConfig))
	}

	apiServer, err := deps.APIServerFactory(cfg.Server.Addr, service, apiOpts...)
	if err != nil {
		stopServer(obsServer, "observability")
		return err
	}
	apiErrChan, err := apiServer.Start()
	if err != nil {
		stopServer(obsServer, "observability")
		return oops.With("operation", "start api server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("PlayerGate started")
	slog.Info("playergate ready", "addr", apiServer.Addr(), "tls", cfg.Server.TLS.Enabled)

	// Wait for shutdown signal or server failure
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	stopServer(apiServer, "api")
	stopServer(obsServer, "observability")

	slog.Info("shutdown complete")
	return nil
}

// stoppable is the common Stop surface of both servers.
type stoppable interface {
	Stop(ctx context.Context) error
}

// stopServer stops a server with the shutdown timeout, tolerating nil
// (observability disabled).
func stopServer(s stoppable, name string) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("error stopping server", "server", name, "error", err)
	}
}

// runMigrationsUp applies all pending migrations.
func runMigrationsUp(databaseURL string) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()
	return migrator.Up()
}

// loadServeTLS builds the API listener TLS config: an explicit
// cert/key pair when configured, otherwise locally generated material
// under the certs directory.
func loadServeTLS(cfg config.TLSConfig) (*cryptotls.Config, error) {
	if cfg.CertFile != "" {
		cert, err := cryptotls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, oops.With("cert_file", cfg.CertFile).Wrap(err)
		}
		return &cryptotls.Config{
			Certificates: []cryptotls.Certificate{cert},
			MinVersion:   cryptotls.VersionTLS12,
		}, nil
	}

	certsDir := cfg.CertsDir
	if certsDir == "" {
		certsDir = xdg.CertsDir()
	}
	return tls.EnsureServerTLS(certsDir)
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// This ensures that server failures trigger graceful shutdown of the entire process.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
