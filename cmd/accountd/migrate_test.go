// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accountd/internal/store"
	"github.com/holomush/accountd/pkg/errutil"
)

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErrCode string
	}{
		{name: "valid integer", input: "2", wantVersion: 2},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "surrounding whitespace", input: "  1 ", wantVersion: 1},
		{name: "non-numeric", input: "abc", wantErrCode: "INVALID_VERSION"},
		{name: "float", input: "1.5", wantErrCode: "INVALID_VERSION"},
		{name: "negative", input: "-1", wantErrCode: "INVALID_VERSION"},
		{name: "empty", input: "", wantErrCode: "INVALID_VERSION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := parseForceVersion(tt.input)
			if tt.wantErrCode != "" {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantErrCode)
				assert.Zero(t, v)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, v)
		})
	}
}

// fakeMigrator implements Migrator.
type fakeMigrator struct {
	calls   []string
	err     error
	status  store.Status
	version uint
	dirty   bool
	forced  int
	closed  bool
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.err
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	return f.err
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	f.calls = append(f.calls, "version")
	return f.version, f.dirty, f.err
}

func (f *fakeMigrator) Force(v int) error {
	f.calls = append(f.calls, "force")
	f.forced = v
	return f.err
}

func (f *fakeMigrator) Status() (store.Status, error) {
	f.calls = append(f.calls, "status")
	return f.status, f.err
}

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

// runMigrate executes the migrate command with args against fake and returns
// stdout and the command error.
func runMigrate(t *testing.T, fake *fakeMigrator, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "")
	configFile = ""

	var gotURL string
	cmd := &cobra.Command{Use: "accountd"}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "")
	cmd.AddCommand(newMigrateCmdWithDeps(&MigrateDeps{
		MigratorFactory: func(url string, _ *slog.Logger) (Migrator, error) {
			gotURL = url
			return fake, nil
		},
	}))

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{"migrate"}, args...))
	err := cmd.Execute()
	return out.String(), gotURL, err
}

func TestMigrateCmd_RequiresDatabaseURL(t *testing.T) {
	fake := &fakeMigrator{}
	_, _, err := runMigrate(t, fake, "up")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.Empty(t, fake.calls)
}

func TestMigrateCmd_Up(t *testing.T) {
	fake := &fakeMigrator{}
	_, url, err := runMigrate(t, fake, "up", "--database-url", "postgres://db/accounts")
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/accounts", url)
	assert.Equal(t, []string{"up"}, fake.calls)
	assert.True(t, fake.closed)
}

func TestMigrateCmd_UpFailure(t *testing.T) {
	fake := &fakeMigrator{err: errors.New("boom")}
	_, _, err := runMigrate(t, fake, "up", "--database-url", "postgres://db/accounts")
	require.Error(t, err)
	assert.True(t, fake.closed)
}

func TestMigrateCmd_DownNeedsConfirmation(t *testing.T) {
	fake := &fakeMigrator{}
	_, _, err := runMigrate(t, fake, "down", "--database-url", "postgres://db/accounts")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIRMATION_REQUIRED")
	assert.Empty(t, fake.calls)

	fake = &fakeMigrator{}
	_, _, err = runMigrate(t, fake, "down", "--yes", "--database-url", "postgres://db/accounts")
	require.NoError(t, err)
	assert.Equal(t, []string{"down"}, fake.calls)
}

func TestMigrateCmd_Status(t *testing.T) {
	fake := &fakeMigrator{status: store.Status{
		Current: 1,
		Applied: []store.Migration{{Version: 1, Name: "000001_create_accounts"}},
		Pending: []store.Migration{{Version: 2, Name: "000002_accounts_email_lowercase"}},
	}}
	out, _, err := runMigrate(t, fake, "status", "--database-url", "postgres://db/accounts")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 1 (clean)")
	assert.Contains(t, out, "Applied:\n  000001_create_accounts\n")
	assert.Contains(t, out, "Pending:\n  000002_accounts_email_lowercase\n")
}

func TestMigrateCmd_Version(t *testing.T) {
	out, _, err := runMigrate(t, &fakeMigrator{version: 2}, "version", "--database-url", "postgres://db/accounts")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, _, err = runMigrate(t, &fakeMigrator{version: 1, dirty: true}, "version", "--database-url", "postgres://db/accounts")
	require.NoError(t, err)
	assert.Equal(t, "1 (dirty)\n", out)
}

func TestMigrateCmd_Force(t *testing.T) {
	fake := &fakeMigrator{}
	_, _, err := runMigrate(t, fake, "force", "1", "--database-url", "postgres://db/accounts")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.forced)

	fake = &fakeMigrator{}
	_, _, err = runMigrate(t, fake, "force", "x", "--database-url", "postgres://db/accounts")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
	assert.Empty(t, fake.calls)
}

func TestMigrateCmd_DatabaseURLFromEnv(t *testing.T) {
	fake := &fakeMigrator{}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""

	var gotURL string
	cmd := &cobra.Command{Use: "accountd"}
	cmd.AddCommand(newMigrateCmdWithDeps(&MigrateDeps{
		MigratorFactory: func(url string, _ *slog.Logger) (Migrator, error) {
			gotURL = url
			return fake, nil
		},
	}))
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"migrate", "up"})
	t.Setenv("DATABASE_URL", "postgres://env/accounts")

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "postgres://env/accounts", gotURL)
}
