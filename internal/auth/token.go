// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// tokenIssuer identifies tokens minted by this service.
const tokenIssuer = "playergate"

// TokenCodec mints and verifies bearer tokens.
type TokenCodec interface {
	// Issue creates a signed token for the subject.
	Issue(subject string) (string, error)

	// Verify checks the token signature and claims and returns the subject.
	// The returned error carries CodeInvalidToken for any tampered,
	// expired, or malformed token.
	Verify(token string) (string, error)
}

// HMACTokenCodec implements TokenCodec using HS256-signed JWTs.
type HMACTokenCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewHMACTokenCodec creates a codec signing with the given secret.
// Tokens expire ttl after issuance.
func NewHMACTokenCodec(secret string, ttl time.Duration) (*HMACTokenCodec, error) {
	if secret == "" {
		return nil, oops.Code(CodeInvalidArgument).Errorf("token secret cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code(CodeInvalidArgument).Errorf("token ttl must be positive, got %s", ttl)
	}
	return &HMACTokenCodec{secret: []byte(secret), ttl: ttl}, nil
}

// Issue creates a signed token for the subject.
func (c *HMACTokenCodec) Issue(subject string) (string, error) {
	if subject == "" {
		return "", oops.Code(CodeInvalidArgument).Errorf("token subject cannot be empty")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify checks the token and returns its subject.
func (c *HMACTokenCodec) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(
		token,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, oops.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", oops.Code(CodeInvalidToken).Wrapf(err, "token expired")
		}
		return "", oops.Code(CodeInvalidToken).Wrapf(err, "token invalid")
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", oops.Code(CodeInvalidToken).Errorf("token missing subject")
	}
	return claims.Subject, nil
}
