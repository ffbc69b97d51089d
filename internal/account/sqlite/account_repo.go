// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sqlite implements account persistence on an embedded SQLite
// database for single-node deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	// Register the pure-Go "sqlite" database/sql driver.
	_ "modernc.org/sqlite"

	"github.com/holomush/accountd/internal/account"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id              TEXT PRIMARY KEY,
    username        TEXT NOT NULL,
    email           TEXT NOT NULL,
    credential_hash TEXT NOT NULL,
    created_at      TEXT NOT NULL,
    CONSTRAINT accounts_username_key UNIQUE (username),
    CONSTRAINT accounts_email_key UNIQUE (email),
    CONSTRAINT accounts_email_lowercase CHECK (email = lower(email))
);`

// AccountRepository implements account.Repository using SQLite.
type AccountRepository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// The pool is limited to one connection: SQLite serializes writers anyway,
// and an in-memory database is private to its connection.
func Open(ctx context.Context, path string) (*AccountRepository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, oops.Code("SQLITE_OPEN_FAILED").Errorf("empty sqlite database path")
	}
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
		schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close() //nolint:errcheck // init error takes precedence
			return nil, oops.Code("SQLITE_OPEN_FAILED").
				With("path", path).
				With("operation", "initialize schema").
				Wrap(err)
		}
	}

	return &AccountRepository{db: db}, nil
}

// Close closes the database.
func (r *AccountRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	if err := r.db.Close(); err != nil {
		return oops.Code("SQLITE_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

// Insert stores a new account.
func (r *AccountRepository) Insert(ctx context.Context, acct *account.Account) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO accounts (id, username, email, credential_hash, created_at)
VALUES (?, ?, ?, ?, ?)`,
		acct.ID.String(),
		acct.Username,
		acct.Email,
		acct.CredentialHash,
		acct.CreatedAt.UTC().Format(time.RFC3339Nano),
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

// DeleteByUsername removes an account, succeeding when none matched.
func (r *AccountRepository) DeleteByUsername(ctx context.Context, username string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE username = ?`, username); err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("username", username).
			Wrap(err)
	}
	return nil
}

// CredentialsByUsername returns up to two rows for username.
func (r *AccountRepository) CredentialsByUsername(ctx context.Context, username string) ([]account.Credential, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, credential_hash FROM accounts WHERE username = ? LIMIT 2`, username)
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", "query credentials").
			With("username", username).
			Wrap(err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

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
	if err := r.db.PingContext(ctx); err != nil {
		return oops.Code("ACCOUNT_PING_FAILED").Wrap(err)
	}
	return nil
}

// uniqueViolation matches SQLite's "UNIQUE constraint failed: accounts.<column>"
// message. modernc.org/sqlite exposes only the numeric result code, which does
// not say which column collided.
func uniqueViolation(err error) (field string, ok bool) {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique constraint failed") {
		return "", false
	}
	if strings.Contains(msg, "accounts.email") {
		return account.FieldEmail, true
	}
	return account.FieldUsername, true
}

var _ account.Repository = (*AccountRepository)(nil)
