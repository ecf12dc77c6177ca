// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

// Package postgres provides PostgreSQL-backed repositories for the auth
// domain.
//
// Only the stable auth error codes are attached to errors here.
// oops.Code() resolves to the deepest code in a chain, so coding
// incidental failures would shadow the code the service layer sets.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/playergate/playergate/internal/auth"
)

// pool is the subset of pgxpool.Pool the repository uses. pgxmock
// satisfies it for tests.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user. A unique violation on the email index is
// reported as auth.ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	rolesJSON, err := json.Marshal(user.Roles)
	if err != nil {
		return oops.With("operation", "marshal roles").Wrap(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO users (
			id, email, password_hash, nickname, avatar_url,
			roles, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.Nickname,
		user.AvatarURL,
		rolesJSON,
		user.Active,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code(auth.CodeDuplicateEmail).
				With("email", user.Email).
				Wrap(auth.ErrDuplicateEmail)
		}
		return oops.With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	return nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, email, password_hash, nickname, avatar_url,
		       roles, active, created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email)

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(auth.CodeUserNotFound).
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, email, password_hash, nickname, avatar_url,
		       roles, active, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id.String())

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(auth.CodeUserNotFound).
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// UpdatePasswordHash replaces only the password hash for a user.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now().UTC())
	if err != nil {
		return oops.With("operation", "update password hash").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code(auth.CodeUserNotFound).
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *UserRepository) scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr        string
		email        string
		passwordHash string
		nickname     string
		avatarURL    *string
		rolesJSON    []byte
		active       bool
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(
		&idStr,
		&email,
		&passwordHash,
		&nickname,
		&avatarURL,
		&rolesJSON,
		&active,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.With("operation", "scan user").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}

	var roles []string
	if len(rolesJSON) > 0 {
		if err := json.Unmarshal(rolesJSON, &roles); err != nil {
			return nil, oops.With("operation", "unmarshal roles").Wrap(err)
		}
	}

	return &auth.User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		Nickname:     nickname,
		AvatarURL:    avatarURL,
		Roles:        roles,
		Active:       active,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
