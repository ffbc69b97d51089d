// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/holomush/accountd/internal/account"
)

var (
	// ErrInvalidInput is returned when a request field fails validation.
	// It is the same sentinel the account package uses, so a
	// *account.ValidationError in the chain names the offending field.
	ErrInvalidInput = account.ErrInvalidInput

	// ErrAccountExists is returned when the username or email is taken.
	ErrAccountExists = errors.New("account already exists")

	// ErrAuthenticationFailed is returned for any credential or token
	// mismatch. Unknown usernames and wrong credentials are not distinguished.
	ErrAuthenticationFailed = errors.New("invalid username or password")

	// ErrServiceUnavailable is returned when storage or signing fails or an
	// operation runs past its deadline.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrIntegrityFault is returned when stored account data violates an
	// invariant, such as a username present on more than one row.
	ErrIntegrityFault = errors.New("account integrity fault")
)

// Operation names used in logs and metrics.
const (
	OpRegister = "register"
	OpDelete   = "delete"
	OpLogin    = "login"
	OpVerify   = "verify"
)

// Outcome labels used in metrics.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalidInput = "invalid_input"
	OutcomeExists       = "exists"
	OutcomeAuthFailed   = "auth_failed"
	OutcomeUnavailable  = "unavailable"
	OutcomeIntegrity    = "integrity_fault"
)

// Outcome maps an error returned by Service to its metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrInvalidInput):
		return OutcomeInvalidInput
	case errors.Is(err, ErrAccountExists):
		return OutcomeExists
	case errors.Is(err, ErrAuthenticationFailed):
		return OutcomeAuthFailed
	case errors.Is(err, ErrIntegrityFault):
		return OutcomeIntegrity
	default:
		return OutcomeUnavailable
	}
}
