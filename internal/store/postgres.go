// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

// Package store provides the PostgreSQL connection lifecycle and
// schema migrations for PlayerGate.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// connectBaseBackoff is the initial delay between connect attempts.
const connectBaseBackoff = 500 * time.Millisecond

// Store owns the PostgreSQL connection pool. It is acquired once at
// startup, injected into repositories, and closed on shutdown.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pooled connection to the database and verifies it
// with a ping, retrying with exponential backoff until maxWait
// elapses. Databases often come up after the service under
// orchestration, so a refused connection is retried; a URL that fails
// to parse is not.
func Connect(ctx context.Context, databaseURL string, maxWait time.Duration) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	backoff := retry.WithMaxDuration(maxWait, retry.NewExponential(connectBaseBackoff))

	var pool *pgxpool.Pool
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		p, newErr := pgxpool.NewWithConfig(ctx, poolCfg)
		if newErr != nil {
			return newErr
		}
		if pingErr := p.Ping(ctx); pingErr != nil {
			p.Close()
			return retry.RetryableError(pingErr)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}

	return &Store{pool: pool}, nil
}

// Pool returns the underlying connection pool for repositories.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping verifies the database connection round-trip. Used by the
// readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("DB_PING_FAILED").Wrap(err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
