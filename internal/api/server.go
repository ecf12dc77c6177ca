// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

// Package api exposes the authentication service over JSON HTTP.
package api

import (
	"context"
	stdtls "crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/samber/oops"

	"github.com/playergate/playergate/internal/auth"
	"github.com/playergate/playergate/internal/observability"
)

// AuthService is the surface of the auth layer the HTTP handlers need.
// Satisfied by *auth.Service.
type AuthService interface {
	Register(ctx context.Context, params auth.RegisterParams) (*auth.User, string, error)
	Login(ctx context.Context, email, password string) (string, error)
	ResolveProfile(ctx context.Context, token string) (auth.Profile, error)
}

// Server serves the public authentication API.
type Server struct {
	addr       string
	auth       AuthService
	metrics    *observability.Metrics
	tlsConfig  *stdtls.Config
	router     chi.Router
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// Option configures optional server behavior.
type Option func(*Server)

// WithMetrics records per-request and per-operation metrics on the
// given collector. Without it the server runs unmetered.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTLS serves the API over TLS with the given config.
func WithTLS(cfg *stdtls.Config) Option {
	return func(s *Server) { s.tlsConfig = cfg }
}

// NewServer creates an API server listening on addr once started.
func NewServer(addr string, authService AuthService, opts ...Option) (*Server, error) {
	if authService == nil {
		return nil, oops.Errorf("auth service is required")
	}

	s := &Server{
		addr: addr,
		auth: authService,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()

	return s, nil
}

// buildRouter wires middleware and routes. The CORS policy is
// deliberately permissive: the service runs behind a platform gateway
// that owns origin policy.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", s.handleBanner)
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/me", s.handleMe)

	return r
}

// Handler returns the configured router. Exposed for handler tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving the API. It returns an error channel that
// receives any serve failure after startup; the channel is closed on
// graceful stop. Callers should monitor the channel.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	if s.tlsConfig != nil {
		listener = stdtls.NewListener(listener, s.tlsConfig)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		// Use local httpSrv to avoid race with subsequent Start() calls
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("api server started", "addr", listener.Addr().String(), "tls", s.tlsConfig != nil)
	return errCh, nil
}

// Stop gracefully shuts down the API server, draining in-flight
// requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	slog.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on, or the empty
// string when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
