// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// MaxEmailLength is the longest address accepted (RFC 5321 path limit).
const MaxEmailLength = 254

// MaxCredentialLength bounds the credential size fed to the hasher.
const MaxCredentialLength = 1024

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

var validate = validator.New()

// Account is a persisted identity record.
type Account struct {
	ID             ulid.ULID
	Username       string
	Email          string
	CredentialHash string
	CreatedAt      time.Time
}

// NewAccount creates a validated Account with a fresh ID.
// The email is normalized to lower case so uniqueness is case-insensitive.
func NewAccount(username, email, credentialHash string, createdAt time.Time) (*Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if credentialHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_CREDENTIAL").Wrap(invalid("credential", "hash cannot be empty"))
	}
	return &Account{
		ID:             ulid.Make(),
		Username:       username,
		Email:          email,
		CredentialHash: credentialHash,
		CreatedAt:      createdAt.UTC(),
	}, nil
}

// NormalizeEmail trims surrounding space and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("ACCOUNT_INVALID_USERNAME").Wrap(invalid("username", "cannot be empty"))
	}
	if len(username) < MinUsernameLength {
		return oops.Code("ACCOUNT_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Wrap(invalid("username", fmt.Sprintf("must be at least %d characters", MinUsernameLength)))
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("ACCOUNT_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Wrap(invalid("username", fmt.Sprintf("must be at most %d characters", MaxUsernameLength)))
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("ACCOUNT_INVALID_USERNAME").
			Wrap(invalid("username", "must start with a letter and contain only letters, numbers, and underscores"))
	}
	return nil
}

// ValidateEmail checks that email is a well-formed address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("ACCOUNT_INVALID_EMAIL").Wrap(invalid("email", "cannot be empty"))
	}
	if len(email) > MaxEmailLength {
		return oops.Code("ACCOUNT_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Wrap(invalid("email", fmt.Sprintf("must be at most %d characters", MaxEmailLength)))
	}
	if err := validate.Var(email, "email"); err != nil {
		return oops.Code("ACCOUNT_INVALID_EMAIL").Wrap(invalid("email", "is not a valid address"))
	}
	return nil
}

// ValidateCredential checks that a raw credential is usable.
func ValidateCredential(credential string) error {
	if credential == "" {
		return oops.Code("ACCOUNT_INVALID_CREDENTIAL").Wrap(invalid("password", "cannot be empty"))
	}
	if len(credential) > MaxCredentialLength {
		return oops.Code("ACCOUNT_INVALID_CREDENTIAL").
			With("max", MaxCredentialLength).
			Wrap(invalid("password", fmt.Sprintf("must be at most %d bytes", MaxCredentialLength)))
	}
	return nil
}

// Credential is the stored verification material for one account row.
type Credential struct {
	AccountID ulid.ULID
	Hash      string
}

// Repository persists accounts. Implementations must surface uniqueness
// violations as errors wrapping ErrConflict, with a "field" context of
// FieldUsername or FieldEmail.
type Repository interface {
	// Insert stores a new account in a single statement.
	Insert(ctx context.Context, acct *Account) error

	// DeleteByUsername removes the account with the given username.
	// Removing a username that does not exist is not an error.
	DeleteByUsername(ctx context.Context, username string) error

	// CredentialsByUsername returns every row matching username.
	// The schema allows at most one; callers treat more as an integrity fault.
	CredentialsByUsername(ctx context.Context, username string) ([]Credential, error)

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}
