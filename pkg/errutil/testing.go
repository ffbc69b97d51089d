// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireOops fails the test immediately unless err is an oops error.
func requireOops(t testing.TB, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	assert.Equal(t, code, requireOops(t, err).Code())
}

// AssertErrorContext asserts that err carries key with value in its oops
// context.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	if assert.Contains(t, ctx, key) {
		assert.Equal(t, value, ctx[key], "context %q", key)
	}
}

// AssertContextOmits asserts that none of keys appear in err's oops context.
// Tests use it to check that credentials never ride along on errors.
func AssertContextOmits(t testing.TB, err error, keys ...string) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	for _, key := range keys {
		assert.NotContains(t, ctx, key, "context must not carry %q", key)
	}
}
