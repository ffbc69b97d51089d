// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package account owns the durable account records used for authentication.
//
// # Domain Types
//
// An Account is created with NewAccount, which validates the username and
// email and requires an already-hashed credential. Raw credentials never
// leave this package: the Store hashes them on Create and verifies them on
// FindByCredentials.
//
// # Store
//
// Store is the only writer of account state. It exposes three operations:
//   - Create - inserts one account, failing with ErrConflict on a duplicate username or email
//   - Delete - removes an account by username; deleting a missing account succeeds
//   - FindByCredentials - resolves a username/credential pair to an account ID
//
// Uniqueness is enforced by the storage engine's constraints, never by a
// lookup before insert. Each operation issues exactly one statement and does
// not retry.
//
// # Repositories
//
// Repository implementations live in the postgres and sqlite subpackages and
// translate driver errors into ErrConflict so callers can match with errors.Is.
package account
