// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/config"
	"github.com/holomush/accountd/internal/xdg"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return err
		},
	})

	validate := &cobra.Command{
		Use:   "validate [FILE]",
		Short: "Check a config file against the schema and configuration rules",
		Long: `Check FILE (default: --config, then XDG_CONFIG_HOME/accountd/config.yaml)
against the configuration schema, then load it with environment fallbacks
and apply the same rules serve enforces at startup.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runConfigValidate,
	}
	validate.Flags().Bool("schema-only", false, "skip the rules that need secrets from the environment")
	cmd.AddCommand(validate)

	return cmd
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		p, err := xdg.ConfigFile()
		if err != nil {
			return err
		}
		path = p
	}

	if err := config.ValidateFile(path); err != nil {
		return err
	}

	if schemaOnly, _ := cmd.Flags().GetBool("schema-only"); !schemaOnly {
		cfg, err := config.Load(config.LoadOptions{File: path})
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return oops.With("path", path).Wrap(err)
		}
	}

	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: configuration is valid\n", path)
	return err
}
