// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accountd/pkg/errutil"
)

func TestGenerateSchema(t *testing.T) {
	raw, err := GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, SchemaID, doc["$id"])
	assert.Equal(t, "accountd configuration", doc["title"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"http", "metrics", "database", "token", "auth", "log"} {
		assert.Contains(t, props, key)
	}
}

func TestValidateYAML(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantCode string
	}{
		{name: "empty document", yaml: ""},
		{name: "full document", yaml: `
http:
  addr: ":8080"
  status_policy: semantic
  request_timeout: 10s
database:
  driver: postgres
  url: postgres://localhost/accounts
  max_conns: 4
token:
  ttl: 1h
log:
  format: text
  level: debug
`},
		{name: "unknown top-level key", yaml: "plugins:\n  enabled: true\n", wantCode: "CONFIG_SCHEMA_MISMATCH"},
		{name: "unknown nested key", yaml: "http:\n  port: 80\n", wantCode: "CONFIG_SCHEMA_MISMATCH"},
		{name: "enum violation", yaml: "database:\n  driver: mysql\n", wantCode: "CONFIG_SCHEMA_MISMATCH"},
		{name: "wrong type", yaml: "database:\n  auto_migrate: [yes]\n", wantCode: "CONFIG_SCHEMA_MISMATCH"},
		{name: "not yaml", yaml: "http: [unclosed\n", wantCode: "CONFIG_YAML_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateYAML([]byte(tt.yaml))
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()

	good := writeFile(t, dir, "good.yaml", "log:\n  level: info\n")
	require.NoError(t, ValidateFile(good))

	bad := writeFile(t, dir, "bad.yaml", "log:\n  colour: red\n")
	err := ValidateFile(bad)
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "path", bad)

	err = ValidateFile(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_FILE_MISSING")
}
