// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/config"
	"github.com/holomush/accountd/internal/logging"
	"github.com/holomush/accountd/internal/store"
	"github.com/holomush/accountd/pkg/errutil"
)

// Migrator wraps the methods the migrate command uses from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// MigrateDeps contains injectable dependencies for the migrate command.
type MigrateDeps struct {
	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string, logger *slog.Logger) (Migrator, error)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmdWithDeps(nil)
}

func newMigrateCmdWithDeps(deps *MigrateDeps) *cobra.Command {
	if deps == nil {
		deps = &MigrateDeps{}
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(databaseURL string, logger *slog.Logger) (Migrator, error) {
			return store.NewMigrator(databaseURL, logger)
		}
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL accounts schema",
		Long: `Apply, roll back, or inspect the embedded PostgreSQL schema migrations.
SQLite storage creates its schema on open and needs no migrations.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (default: $"+config.EnvDatabaseURL+")")

	withMigrator := func(run func(cmd *cobra.Command, m Migrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			m, logger, err := openMigrator(cmd, deps)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := m.Close(); closeErr != nil {
					errutil.LogError(logger, "error closing migrator", closeErr)
				}
			}()
			return run(cmd, m, args)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			if err := m.Up(); err != nil {
				return err
			}
			cmd.Println("Migrations applied")
			return nil
		}),
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all accounts)",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("refusing to drop the accounts schema without --yes")
			}
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("All migrations rolled back")
			return nil
		}),
	}
	down.Flags().Bool("yes", false, "confirm dropping the accounts schema")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			st, err := m.Status()
			if err != nil {
				return err
			}
			printStatus(cmd, st)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if dirty {
				fmt.Fprintf(cmd.OutOrStdout(), "%d (dirty)\n", v)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", v)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Long: `Record VERSION as the current schema version and clear the dirty flag.
Use only after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(v); err != nil {
				return err
			}
			cmd.Printf("Forced schema version %d\n", v)
			return nil
		}),
	})

	return cmd
}

// openMigrator resolves the database URL from flags, config, and environment
// and opens a migrator. Only database.url is required; other keys are not
// validated.
func openMigrator(cmd *cobra.Command, deps *MigrateDeps) (Migrator, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.URL == "" {
		return nil, nil, oops.Code("CONFIG_INVALID").
			Errorf("database.url is required (set --database-url or %s)", config.EnvDatabaseURL)
	}

	logger := logging.Setup(serviceName, version, "text", cfg.Log.Level, cmd.ErrOrStderr())
	m, err := deps.MigratorFactory(cfg.Database.URL, logger)
	if err != nil {
		return nil, nil, oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	return m, logger, nil
}

// parseForceVersion parses the VERSION argument of migrate force.
func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer")
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be non-negative")
	}
	return v, nil
}

func printStatus(cmd *cobra.Command, st store.Status) {
	out := cmd.OutOrStdout()
	state := "clean"
	if st.Dirty {
		state = "dirty"
	}
	fmt.Fprintf(out, "Current version: %d (%s)\n", st.Current, state)

	section := func(title string, migs []store.Migration) {
		fmt.Fprintf(out, "%s:\n", title)
		if len(migs) == 0 {
			fmt.Fprintln(out, "  (none)")
			return
		}
		for _, m := range migs {
			fmt.Fprintf(out, "  %s\n", m.Name)
		}
	}
	section("Applied", st.Applied)
	section("Pending", st.Pending)
}
