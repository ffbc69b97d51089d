// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one embedded schema migration.
type Migration struct {
	Version uint
	Name    string // NNNNNN_identifier, e.g. "000001_create_accounts"
}

// The embedded catalog never changes at runtime, so it is read once.
var (
	catalogOnce sync.Once
	catalogList []Migration
	catalogErr  error
)

// migrateIface abstracts golang-migrate so the Migrator can be unit tested
// without a database.
type migrateIface interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the accounts schema to PostgreSQL.
type Migrator struct {
	m migrateIface
}

// MigrationURL rewrites postgres:// and postgresql:// URLs to the pgx5://
// scheme the golang-migrate pgx/v5 driver registers under. Other URLs are
// returned unchanged.
func MigrationURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, found := strings.CutPrefix(databaseURL, scheme); found {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// NewMigrator connects to databaseURL and prepares the embedded migrations.
// Progress is reported to logger; a nil logger uses slog.Default.
func NewMigrator(databaseURL string, logger *slog.Logger) (*Migrator, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "create migration source").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, MigrationURL(databaseURL))
	if err != nil {
		_ = src.Close() //nolint:errcheck // init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	m.Log = migrateLogger{logger: logger}

	return &Migrator{m: m}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back every migration, dropping the accounts table and its data.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Steps applies n migrations. Positive n migrates up, negative n migrates down.
func (m *Migrator) Steps(n int) error {
	if n == 0 {
		return nil
	}
	if err := m.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_STEPS_FAILED").With("steps", n).Wrap(err)
	}
	return nil
}

// Version returns the current migration version and dirty state.
// Version 0 means nothing has been applied.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force records version as applied without running anything. It is only for
// clearing a dirty state after the database has been fixed by hand.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases the source and database handles.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	switch {
	case srcErr != nil && dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").
			With("component", "both").
			Wrap(errors.Join(srcErr, dbErr))
	case srcErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "source").Wrap(srcErr)
	case dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "database").Wrap(dbErr)
	}
	return nil
}

// Status summarizes the schema state.
type Status struct {
	Current uint
	Dirty   bool
	Applied []Migration
	Pending []Migration
}

// Status reports the current version and which embedded migrations are
// applied or pending.
func (m *Migrator) Status() (Status, error) {
	current, dirty, err := m.Version()
	if err != nil {
		return Status{}, oops.With("operation", "get migration status").Wrap(err)
	}
	all, err := Migrations()
	if err != nil {
		return Status{}, oops.With("operation", "get migration status").Wrap(err)
	}

	st := Status{Current: current, Dirty: dirty}
	for _, mig := range all {
		if mig.Version <= current {
			st.Applied = append(st.Applied, mig)
		} else {
			st.Pending = append(st.Pending, mig)
		}
	}
	return st, nil
}

// PendingMigrations returns the versions Up would apply, ascending.
func (m *Migrator) PendingMigrations() ([]uint, error) {
	st, err := m.Status()
	if err != nil {
		return nil, err
	}
	return versions(st.Pending), nil
}

// AppliedMigrations returns the applied versions, ascending.
func (m *Migrator) AppliedMigrations() ([]uint, error) {
	st, err := m.Status()
	if err != nil {
		return nil, err
	}
	return versions(st.Applied), nil
}

func versions(migs []Migration) []uint {
	if len(migs) == 0 {
		return nil
	}
	out := make([]uint, len(migs))
	for i, mig := range migs {
		out[i] = mig.Version
	}
	return out
}

// Migrations lists the embedded migrations in ascending version order.
// The returned slice is a copy.
func Migrations() ([]Migration, error) {
	catalogOnce.Do(func() {
		catalogList, catalogErr = loadCatalog()
	})
	if catalogErr != nil {
		return nil, catalogErr
	}
	out := make([]Migration, len(catalogList))
	copy(out, catalogList)
	return out, nil
}

// MigrationName returns the NNNNNN_identifier name of version, or "" if no
// embedded migration has that version.
func MigrationName(version uint) (string, error) {
	all, err := Migrations()
	if err != nil {
		return "", err
	}
	for _, mig := range all {
		if mig.Version == version {
			return mig.Name, nil
		}
	}
	return "", nil
}

// loadCatalog walks the embedded source with the same driver golang-migrate
// uses, so the listing always agrees with what Up applies.
func loadCatalog() ([]Migration, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("operation", "open migration source").Wrap(err)
	}
	defer func() { _ = src.Close() }() //nolint:errcheck // embedded FS close cannot fail meaningfully

	var out []Migration
	v, err := src.First()
	for err == nil {
		name, nameErr := upName(src, v)
		if nameErr != nil {
			return nil, nameErr
		}
		out = append(out, Migration{Version: v, Name: name})
		v, err = src.Next(v)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("operation", "walk migrations").Wrap(err)
	}
	return out, nil
}

func upName(src source.Driver, version uint) (string, error) {
	r, identifier, err := src.ReadUp(version)
	if err != nil {
		return "", oops.Code("MIGRATION_LIST_FAILED").With("version", version).Wrap(err)
	}
	_ = r.Close() //nolint:errcheck // only the identifier is needed
	return fmt.Sprintf("%06d_%s", version, identifier), nil
}

// migrateLogger adapts slog to golang-migrate's Logger interface.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l migrateLogger) Verbose() bool {
	return false
}
