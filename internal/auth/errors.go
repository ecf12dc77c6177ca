// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when an email address is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// Stable error codes carried by service errors. The HTTP layer maps these
// to status codes; callers treat CodeStoreUnavailable as the only retryable
// condition.
const (
	CodeDuplicateEmail     = "AUTH_DUPLICATE_EMAIL"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeUserNotFound       = "AUTH_USER_NOT_FOUND"
	CodeStoreUnavailable   = "AUTH_STORE_UNAVAILABLE"
	CodeInvalidArgument    = "AUTH_INVALID_ARGUMENT"
)
