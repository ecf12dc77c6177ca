// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package auth

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Nickname validation constraints.
const (
	MinNicknameLength = 3
	MaxNicknameLength = 32
)

// RolePlayer is the role granted to every account at registration.
const RolePlayer = "player"

// User represents a player account.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	Nickname     string
	AvatarURL    *string
	Roles        []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the externally visible projection of a User. It never
// carries the password hash.
type Profile struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Nickname  string   `json:"nickname"`
	AvatarURL *string  `json:"avatar_url,omitempty"`
	Roles     []string `json:"roles"`
}

// NewUser creates a validated User with a fresh ID and timestamps.
// The email is stored normalized (trimmed, lowercased), roles default
// to player, and the account starts active.
func NewUser(email, passwordHash, nickname string, avatarURL *string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code(CodeInvalidArgument).Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code(CodeInvalidArgument).Errorf("password hash cannot be empty")
	}
	if err := ValidateNickname(nickname); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		Nickname:     nickname,
		AvatarURL:    avatarURL,
		Roles:        []string{RolePlayer},
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Profile returns the external projection of the user. The roles slice
// is copied so callers cannot mutate the account record through it.
func (u *User) Profile() Profile {
	roles := make([]string, len(u.Roles))
	copy(roles, u.Roles)
	return Profile{
		ID:        u.ID.String(),
		Email:     u.Email,
		Nickname:  u.Nickname,
		AvatarURL: u.AvatarURL,
		Roles:     roles,
	}
}

// NormalizeEmail canonicalizes an email address for identity comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateNickname validates a display nickname.
// Nicknames are MinNicknameLength to MaxNicknameLength characters;
// length is counted in runes, not bytes.
func ValidateNickname(nickname string) error {
	if nickname == "" {
		return oops.Code(CodeInvalidArgument).Errorf("nickname cannot be empty")
	}
	n := utf8.RuneCountInString(nickname)
	if n < MinNicknameLength {
		return oops.Code(CodeInvalidArgument).
			With("min", MinNicknameLength).
			Errorf("nickname must be at least %d characters", MinNicknameLength)
	}
	if n > MaxNicknameLength {
		return oops.Code(CodeInvalidArgument).
			With("max", MaxNicknameLength).
			Errorf("nickname must be at most %d characters", MaxNicknameLength)
	}
	return nil
}

// UserRepository manages user persistence. Implementations treat email
// as the unique identity key.
type UserRepository interface {
	// Create stores a new user. Returns an error wrapping
	// ErrDuplicateEmail when the email is already taken.
	Create(ctx context.Context, user *User) error

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns an error wrapping ErrNotFound when no user matches.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retrieves a user by ID.
	// Returns an error wrapping ErrNotFound when no user matches.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// UpdatePasswordHash replaces the stored password hash for a user.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error
}
