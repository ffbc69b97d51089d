// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads and validates accountd configuration.
//
// Sources are applied in order, later ones winning: built-in defaults, a YAML
// file, command-line flags that were explicitly set, and finally the
// DATABASE_URL and ACCOUNTD_SIGNING_KEY environment variables for values
// that are still empty.
package config

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/logging"
	"github.com/holomush/accountd/internal/token"
)

// Status policies for mapping service outcomes to HTTP status codes.
const (
	StatusPolicySemantic = "semantic"
	StatusPolicyCompat   = "compat"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the complete accountd configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http" json:"http,omitempty" jsonschema:"description=Public HTTP API"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty" jsonschema:"description=Metrics and health probe listener"`
	Database DatabaseConfig `koanf:"database" json:"database,omitempty"`
	Token    TokenConfig    `koanf:"token" json:"token,omitempty" jsonschema:"description=Session token signing"`
	Auth     AuthConfig     `koanf:"auth" json:"auth,omitempty"`
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
}

// HTTPConfig configures the public API listener.
type HTTPConfig struct {
	Addr           string        `koanf:"addr" json:"addr,omitempty" validate:"required" jsonschema:"description=Listen address (host:port)"`
	StatusPolicy   string        `koanf:"status_policy" json:"status_policy,omitempty" validate:"oneof=semantic compat" jsonschema:"enum=semantic,enum=compat"`
	RequestTimeout time.Duration `koanf:"request_timeout" json:"request_timeout,omitempty" validate:"gt=0" jsonschema:"oneof_type=string;integer,description=Per-request deadline such as 10s"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Listen address for /metrics and /healthz; empty disables"`
}

// DatabaseConfig selects and configures account storage.
type DatabaseConfig struct {
	Driver         string        `koanf:"driver" json:"driver,omitempty" validate:"oneof=postgres sqlite" jsonschema:"enum=postgres,enum=sqlite"`
	URL            string        `koanf:"url" json:"url,omitempty" validate:"required_if=Driver postgres" jsonschema:"description=PostgreSQL connection URL"`
	SQLitePath     string        `koanf:"sqlite_path" json:"sqlite_path,omitempty" jsonschema:"description=SQLite database file; defaults to the XDG data directory"`
	MaxConns       int32         `koanf:"max_conns" json:"max_conns,omitempty" validate:"gte=0" jsonschema:"minimum=0"`
	ConnectRetries uint64        `koanf:"connect_retries" json:"connect_retries,omitempty"`
	ConnectBackoff time.Duration `koanf:"connect_backoff" json:"connect_backoff,omitempty" validate:"gt=0" jsonschema:"oneof_type=string;integer"`
	AutoMigrate    bool          `koanf:"auto_migrate" json:"auto_migrate,omitempty"`
}

// TokenConfig configures session token signing.
type TokenConfig struct {
	SigningKey string        `koanf:"signing_key" json:"signing_key,omitempty" validate:"required" jsonschema:"description=HMAC key of at least 32 bytes"`
	TTL        time.Duration `koanf:"ttl" json:"ttl,omitempty" validate:"gt=0" jsonschema:"oneof_type=string;integer"`
	Issuer     string        `koanf:"issuer" json:"issuer,omitempty"`
	ClockSkew  time.Duration `koanf:"clock_skew" json:"clock_skew,omitempty" validate:"gte=0" jsonschema:"oneof_type=string;integer"`
}

// AuthConfig configures the authentication service.
type AuthConfig struct {
	OperationTimeout time.Duration `koanf:"operation_timeout" json:"operation_timeout,omitempty" validate:"gte=0" jsonschema:"oneof_type=string;integer,description=Deadline per operation; 0 disables"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" validate:"oneof=json text" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:           ":8080",
			StatusPolicy:   StatusPolicySemantic,
			RequestTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
		Database: DatabaseConfig{
			Driver:         DriverPostgres,
			MaxConns:       10,
			ConnectRetries: 5,
			ConnectBackoff: time.Second,
			AutoMigrate:    true,
		},
		Token: TokenConfig{
			TTL:       time.Hour,
			Issuer:    "accountd",
			ClockSkew: token.DefaultClockSkew,
		},
		Auth: AuthConfig{
			OperationTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("koanf")
	})
	return v
}

// Validate checks the configuration. The returned error names every
// offending key but never includes a value.
func (c *Config) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return oops.Code("CONFIG_INVALID").Wrap(err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if c.Token.SigningKey != "" && len(c.Token.SigningKey) < token.MinSigningKeyLength {
		problems = append(problems, "token.signing_key: must be at least 32 bytes")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, "log.level: must be one of debug, info, warn, error")
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return oops.Code("CONFIG_INVALID").
		With("problems", problems).
		Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

func describe(fe validator.FieldError) string {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return key + ": is required"
	case "oneof":
		return key + ": must be one of " + fe.Param()
	case "gt":
		return key + ": must be greater than " + fe.Param()
	case "gte":
		return key + ": must not be negative"
	default:
		return key + ": failed " + fe.Tag()
	}
}
