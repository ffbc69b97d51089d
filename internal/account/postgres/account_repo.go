// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements account persistence on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/account"
)

// Unique constraint names from migration 000001_create_accounts.
const (
	usernameConstraint = "accounts_username_key"
	emailConstraint    = "accounts_email_key"
)

// poolIface is the subset of *pgxpool.Pool used by the repository.
// pgxmock.PgxPoolIface satisfies it for unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Insert stores a new account.
func (r *AccountRepository) Insert(ctx context.Context, acct *account.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (id, username, email, credential_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		acct.ID.String(),
		acct.Username,
		acct.Email,
		acct.CredentialHash,
		acct.CreatedAt,
	)
	if err == nil {
		return nil
	}

	if field, ok := uniqueViolation(err); ok {
		code := "ACCOUNT_USERNAME_TAKEN"
		if field == account.FieldEmail {
			code = "ACCOUNT_EMAIL_TAKEN"
		}
		return oops.Code(code).
			With("field", field).
			With("username", acct.Username).
			Wrap(account.ErrConflict)
	}

	return oops.Code("ACCOUNT_INSERT_FAILED").
		With("operation", "insert account").
		With("username", acct.Username).
		Wrap(err)
}

// DeleteByUsername removes an account. The affected row count is ignored so
// deleting a missing account succeeds.
func (r *AccountRepository) DeleteByUsername(ctx context.Context, username string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE username = $1`, username); err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("username", username).
			Wrap(err)
	}
	return nil
}

// CredentialsByUsername returns up to two rows for username, enough to detect
// a duplicate without reading the whole table.
func (r *AccountRepository) CredentialsByUsername(ctx context.Context, username string) ([]account.Credential, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, credential_hash
		FROM accounts
		WHERE username = $1
		LIMIT 2
	`, username)
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", "query credentials").
			With("username", username).
			Wrap(err)
	}
	defer rows.Close()

	var creds []account.Credential
	for rows.Next() {
		var idStr, hash string
		if err := rows.Scan(&idStr, &hash); err != nil {
			return nil, oops.Code("ACCOUNT_QUERY_FAILED").
				With("operation", "scan credential row").
				With("username", username).
				Wrap(err)
		}
		id, err := ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("ACCOUNT_ID_INVALID").
				With("username", username).
				With("id", idStr).
				Wrap(errors.Join(account.ErrIntegrity, err))
		}
		creds = append(creds, account.Credential{AccountID: id, Hash: hash})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", "iterate credential rows").
			With("username", username).
			Wrap(err)
	}
	return creds, nil
}

// Ping checks database connectivity.
func (r *AccountRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return oops.Code("ACCOUNT_PING_FAILED").Wrap(err)
	}
	return nil
}

// uniqueViolation reports whether err is a unique_violation and which account
// field it concerns.
func uniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return "", false
	}
	if pgErr.ConstraintName == emailConstraint {
		return account.FieldEmail, true
	}
	// usernameConstraint, and the primary key which cannot collide in practice
	return account.FieldUsername, true
}

var _ account.Repository = (*AccountRepository)(nil)
