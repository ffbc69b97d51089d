// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accountd/pkg/errutil"
)

const testKey = "0123456789abcdef0123456789abcdef"

func validConfig() Config {
	c := Default()
	c.Database.URL = "postgres://accountd@localhost/accountd"
	c.Token.SigningKey = testKey
	return c
}

func TestDefault_IsValidOnceSecretsAreSet(t *testing.T) {
	c := validConfig()
	require.NoError(t, c.Validate())
}

func TestDefault_Values(t *testing.T) {
	c := Default()
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.Equal(t, StatusPolicySemantic, c.HTTP.StatusPolicy)
	assert.Equal(t, DriverPostgres, c.Database.Driver)
	assert.Equal(t, time.Hour, c.Token.TTL)
	assert.Equal(t, 5*time.Second, c.Auth.OperationTimeout)
	assert.True(t, c.Database.AutoMigrate)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		problem string
	}{
		{"missing signing key", func(c *Config) { c.Token.SigningKey = "" }, "token.signing_key: is required"},
		{"short signing key", func(c *Config) { c.Token.SigningKey = "short" }, "token.signing_key: must be at least 32 bytes"},
		{"postgres without url", func(c *Config) { c.Database.URL = "" }, "database.url: is required"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver: must be one of postgres sqlite"},
		{"unknown status policy", func(c *Config) { c.HTTP.StatusPolicy = "loose" }, "http.status_policy: must be one of semantic compat"},
		{"zero ttl", func(c *Config) { c.Token.TTL = 0 }, "token.ttl: must be greater than 0"},
		{"negative operation timeout", func(c *Config) { c.Auth.OperationTimeout = -time.Second }, "auth.operation_timeout: must not be negative"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level: must be one of debug, info, warn, error"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format: must be one of json text"},
		{"empty addr", func(c *Config) { c.HTTP.Addr = "" }, "http.addr: is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestValidate_SQLiteNeedsNoURL(t *testing.T) {
	c := validConfig()
	c.Database.Driver = DriverSQLite
	c.Database.URL = ""
	require.NoError(t, c.Validate())
}

func TestValidate_ZeroOperationTimeoutDisables(t *testing.T) {
	c := validConfig()
	c.Auth.OperationTimeout = 0
	require.NoError(t, c.Validate())
}

func TestValidate_ReportsEveryProblemSorted(t *testing.T) {
	c := Default()
	c.Log.Format = "xml"
	err := c.Validate()
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	problems, ok := oopsErr.Context()["problems"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{
		"database.url: is required",
		"log.format: must be one of json text",
		"token.signing_key: is required",
	}, problems)
}

func TestValidate_NeverEchoesSecrets(t *testing.T) {
	c := validConfig()
	c.Token.SigningKey = "tiny-secret"
	c.Database.Driver = "bogus"
	err := c.Validate()
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "tiny-secret"))
}
