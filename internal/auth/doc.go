// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements account registration, deletion, and login.
//
// # Services
//
// Service coordinates an AccountStore and a TokenIssuer:
//   - Register - creates an account and returns its username
//   - Delete - removes an account by username; missing accounts are not an error
//   - Login - verifies credentials and returns a signed session token
//   - VerifyToken - checks a session token and returns its claims
//
// # Errors
//
// Every error returned by Service matches exactly one of ErrInvalidInput,
// ErrAccountExists, ErrAuthenticationFailed, ErrServiceUnavailable, or
// ErrIntegrityFault via errors.Is. Infrastructure detail is kept in the oops
// context for logging and never surfaces in the error message.
package auth
