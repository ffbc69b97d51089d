// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import "errors"

var (
	// ErrConflict is returned when an insert violates the username or email
	// uniqueness constraint.
	ErrConflict = errors.New("account already exists")

	// ErrIntegrity is returned when stored state violates an invariant the
	// schema should guarantee, such as two rows sharing a username.
	ErrIntegrity = errors.New("account integrity fault")

	// ErrInvalidInput is returned when a username, email, or credential fails validation.
	ErrInvalidInput = errors.New("invalid account input")
)

// Conflict fields reported in the "field" context of ErrConflict errors.
const (
	FieldUsername = "username"
	FieldEmail    = "email"
)

// ValidationError reports which input was rejected and why. It unwraps to
// ErrInvalidInput.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
