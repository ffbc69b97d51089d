// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/accountd/internal/xdg"
)

// Environment variables consulted when the matching key is still empty.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvSigningKey  = "ACCOUNTD_SIGNING_KEY"
)

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"addr":              "http.addr",
	"status-policy":     "http.status_policy",
	"request-timeout":   "http.request_timeout",
	"metrics-addr":      "metrics.addr",
	"database-driver":   "database.driver",
	"database-url":      "database.url",
	"sqlite-path":       "database.sqlite_path",
	"auto-migrate":      "database.auto_migrate",
	"token-ttl":         "token.ttl",
	"operation-timeout": "auth.operation_timeout",
	"log-format":        "log.format",
	"log-level":         "log.level",
}

// RegisterFlags adds the configuration flags to fs. Their defaults mirror
// Default; only flags the user sets override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("addr", d.HTTP.Addr, "HTTP API listen address")
	fs.String("status-policy", d.HTTP.StatusPolicy, "HTTP status mapping (semantic or compat)")
	fs.Duration("request-timeout", d.HTTP.RequestTimeout, "per-request deadline")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("database-driver", d.Database.Driver, "account storage (postgres or sqlite)")
	fs.String("database-url", "", "PostgreSQL URL (default: $"+EnvDatabaseURL+")")
	fs.String("sqlite-path", "", "SQLite database file (default: XDG_DATA_HOME/accountd/accounts.db)")
	fs.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations at startup")
	fs.Duration("token-ttl", d.Token.TTL, "session token lifetime")
	fs.Duration("operation-timeout", d.Auth.OperationTimeout, "deadline per auth operation (0 = none)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// File is an explicit config path. It must exist when set. When empty,
	// the XDG config file is read if present.
	File string
	// Flags, if set, supplies overrides for flags registered by RegisterFlags.
	Flags *pflag.FlagSet
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load assembles the configuration from all sources. It does not call
// Validate.
func Load(opts LoadOptions) (*Config, error) {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	k := koanf.New(".")

	path, required := opts.File, true
	if path == "" {
		required = false
		p, err := xdg.ConfigFile()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if err := loadFile(k, path, required); err != nil {
			return nil, err
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "merge").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = opts.Getenv(EnvDatabaseURL)
	}
	if cfg.Token.SigningKey == "" {
		cfg.Token.SigningKey = opts.Getenv(EnvSigningKey)
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return oops.Code("CONFIG_FILE_MISSING").With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", path).Wrap(err)
	}
	return nil
}
