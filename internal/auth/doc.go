// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

// Package auth provides the authentication core for PlayerGate.
//
// # Domain Types
//
// User is the player account record. Create one with NewUser, which
// validates the identity fields and assigns the ID and timestamps.
// Direct struct initialization bypasses validation and may create
// invalid state; repository implementations receive pre-validated
// values from the constructor.
//
// # Components
//
//   - PasswordHasher - one-way salted hashing (argon2id) and verification
//   - TokenCodec - signed bearer tokens carrying the subject email
//   - UserRepository - persistence contract keyed by email
//   - Service - register, login, and profile resolution over the above
//
// Components are created with New* constructors that validate their
// dependencies and configuration.
package auth
