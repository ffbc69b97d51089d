// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// dummyCredentialHash is verified when no account matches a username so the
// response time does not reveal whether the username exists. It will never
// match any credential.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyCredentialHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Store implements account create, delete, and credential lookup on top of a
// Repository.
type Store struct {
	repo     Repository
	hasher   PasswordHasher
	logger   *slog.Logger
	now      func() time.Time
	onLegacy func()
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used for integrity and legacy-hash warnings.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLegacyHashHook registers a callback invoked after a successful
// verification against a non-argon2id hash.
func WithLegacyHashHook(fn func()) StoreOption {
	return func(s *Store) {
		s.onLegacy = fn
	}
}

// NewStore creates a Store. Both repo and hasher are required.
func NewStore(repo Repository, hasher PasswordHasher, opts ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, oops.Code("ACCOUNT_STORE_INVALID").Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("ACCOUNT_STORE_INVALID").Errorf("password hasher is required")
	}
	s := &Store{
		repo:   repo,
		hasher: hasher,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create hashes the credential and inserts a new account.
// Returns an error wrapping ErrConflict if the username or email is taken,
// or ErrInvalidInput if validation fails.
func (s *Store) Create(ctx context.Context, username, email, credential string) (*Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(NormalizeEmail(email)); err != nil {
		return nil, err
	}
	if err := ValidateCredential(credential); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(credential)
	if err != nil {
		return nil, oops.Code("ACCOUNT_HASH_FAILED").
			With("username", username).
			Wrap(err)
	}

	acct, err := NewAccount(username, email, hash, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, acct); err != nil {
		return nil, oops.With("operation", "create account").Wrap(err)
	}
	return acct, nil
}

// Delete removes the account with the given username. It succeeds whether or
// not the account existed.
func (s *Store) Delete(ctx context.Context, username string) error {
	if username == "" {
		return oops.Code("ACCOUNT_INVALID_USERNAME").Wrap(invalid("username", "cannot be empty"))
	}
	if err := s.repo.DeleteByUsername(ctx, username); err != nil {
		return oops.With("operation", "delete account").Wrap(err)
	}
	return nil
}

// FindByCredentials returns the ID of the account matching both username and
// credential. found is false when no account matches; an unknown username and
// a wrong credential are indistinguishable to the caller. More than one
// matching row, or an unreadable stored hash, yields ErrIntegrity.
func (s *Store) FindByCredentials(ctx context.Context, username, credential string) (id ulid.ULID, found bool, err error) {
	rows, err := s.repo.CredentialsByUsername(ctx, username)
	if err != nil {
		return ulid.ULID{}, false, oops.With("operation", "find account by credentials").Wrap(err)
	}

	switch len(rows) {
	case 0:
		//nolint:errcheck // result is discarded; the call only equalizes timing
		_, _ = s.hasher.Verify(credential, dummyCredentialHash)
		return ulid.ULID{}, false, nil
	case 1:
	default:
		s.logger.ErrorContext(ctx, "multiple accounts share a username",
			"username", username,
			"rows", len(rows))
		return ulid.ULID{}, false, oops.Code("ACCOUNT_DUPLICATE_USERNAME").
			With("username", username).
			With("rows", len(rows)).
			Wrap(ErrIntegrity)
	}

	row := rows[0]
	ok, err := s.hasher.Verify(credential, row.Hash)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored credential hash is unreadable",
			"username", username,
			"account_id", row.AccountID.String(),
			"error", err)
		return ulid.ULID{}, false, oops.Code("ACCOUNT_HASH_UNREADABLE").
			With("username", username).
			With("account_id", row.AccountID.String()).
			Wrap(errors.Join(ErrIntegrity, err))
	}
	if !ok {
		return ulid.ULID{}, false, nil
	}

	if s.hasher.NeedsUpgrade(row.Hash) {
		// Accounts are never rewritten after creation, so the old hash stays.
		s.logger.WarnContext(ctx, "login verified against legacy credential hash",
			"username", username,
			"account_id", row.AccountID.String())
		if s.onLegacy != nil {
			s.onLegacy()
		}
	}

	return row.AccountID, true, nil
}

// Ping reports whether the backing repository is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return oops.With("operation", "ping account repository").Wrap(err)
	}
	return nil
}
