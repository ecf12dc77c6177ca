// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package auth

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/samber/oops"
)

// defaultStoreTimeout bounds individual repository calls when the
// caller does not configure one.
const defaultStoreTimeout = 5 * time.Second

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RegisterParams carries the fields for creating an account.
type RegisterParams struct {
	Email     string
	Password  string
	Nickname  string
	AvatarURL *string
}

// Validate checks field presence and shape.
func (p RegisterParams) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required),
		validation.Field(&p.Nickname, validation.Required,
			validation.RuneLength(MinNicknameLength, MaxNicknameLength)),
		validation.Field(&p.AvatarURL, validation.NilOrNotEmpty, is.URL),
	)
	if err != nil {
		return oops.Code(CodeInvalidArgument).Wrap(err)
	}
	return nil
}

// Service provides registration, login, and profile resolution.
type Service struct {
	users        UserRepository
	hasher       PasswordHasher
	tokens       TokenCodec
	storeTimeout time.Duration
}

// NewService creates a new Service. A non-positive storeTimeout falls
// back to defaultStoreTimeout.
func NewService(users UserRepository, hasher PasswordHasher, tokens TokenCodec, storeTimeout time.Duration) (*Service, error) {
	if users == nil {
		return nil, oops.Code(CodeInvalidArgument).Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code(CodeInvalidArgument).Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code(CodeInvalidArgument).Errorf("token codec is required")
	}
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &Service{
		users:        users,
		hasher:       hasher,
		tokens:       tokens,
		storeTimeout: storeTimeout,
	}, nil
}

// Register creates a new account and returns it together with a signed
// bearer token, so a fresh registration is also a login.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, string, error) {
	params.Email = NormalizeEmail(params.Email)
	if err := params.Validate(); err != nil {
		return nil, "", err
	}

	email := params.Email

	// Pre-check for a friendly error. The unique index on email is the
	// real guard; a concurrent insert still surfaces as a duplicate below.
	lookupCtx, cancel := s.storeCtx(ctx)
	_, err := s.users.GetByEmail(lookupCtx, email)
	cancel()
	switch {
	case err == nil:
		return nil, "", oops.Code(CodeDuplicateEmail).Wrap(ErrDuplicateEmail)
	case errors.Is(err, ErrNotFound):
		// Email is free.
	default:
		return nil, "", storeUnavailable("get user by email", err)
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, hash, params.Nickname, params.AvatarURL)
	if err != nil {
		return nil, "", err
	}

	createCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.users.Create(createCtx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, "", oops.Code(CodeDuplicateEmail).Wrap(err)
		}
		return nil, "", storeUnavailable("create user", err)
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	return user, token, nil
}

// Login verifies credentials and returns a signed bearer token.
// Unknown email and wrong password produce the same error so callers
// cannot probe which addresses are registered.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)

	lookupCtx, cancel := s.storeCtx(ctx)
	user, lookupErr := s.users.GetByEmail(lookupCtx, email)
	cancel()

	// Pick the hash to verify against (real or dummy) so the work done is
	// the same whether or not the account exists.
	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return "", storeUnavailable("get user by email", lookupErr)
		}
		targetHash = dummyPasswordHash
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil || !userExists || !valid {
		// A stored hash that fails to parse counts as a mismatch; the
		// caller learns nothing about which check failed.
		return "", errInvalidCredentials()
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			upgradeCtx, cancel := s.storeCtx(ctx)
			_ = s.users.UpdatePasswordHash(upgradeCtx, user.ID, newHash) //nolint:errcheck // Best effort, login succeeds regardless
			cancel()
		}
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	return token, nil
}

// ResolveProfile verifies the token and returns the owning account's
// profile.
func (s *Service) ResolveProfile(ctx context.Context, token string) (Profile, error) {
	subject, err := s.tokens.Verify(token)
	if err != nil {
		return Profile{}, err
	}

	lookupCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users.GetByEmail(lookupCtx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, oops.Code(CodeUserNotFound).Errorf("user no longer exists")
		}
		return Profile{}, storeUnavailable("get user by email", err)
	}

	return user.Profile(), nil
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

func storeUnavailable(operation string, err error) error {
	// oops.Code() resolves to the deepest code in a chain, so wrapping a
	// coded cause would shadow CodeStoreUnavailable. Flatten the cause
	// into the message instead.
	return oops.Code(CodeStoreUnavailable).
		With("operation", operation).
		Errorf("store unavailable: %v", err)
}
