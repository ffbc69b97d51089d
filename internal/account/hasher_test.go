// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/accountd/internal/account"
	"github.com/holomush/accountd/pkg/errutil"
)

func TestArgon2idHasher_Hash(t *testing.T) {
	hasher := account.NewArgon2idHasher()

	t.Run("produces PHC argon2id string", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))
		assert.Len(t, strings.Split(hash, "$"), 6)
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("never contains the raw password", func(t *testing.T) {
		hash, err := hasher.Hash("hunter2hunter2")
		require.NoError(t, err)
		assert.NotContains(t, hash, "hunter2hunter2")
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "HASH_EMPTY_PASSWORD")
	})
}

func TestArgon2idHasher_Verify(t *testing.T) {
	hasher := account.NewArgon2idHasher()

	hash, err := hasher.Hash("correctpassword")
	require.NoError(t, err)

	t.Run("correct password verifies", func(t *testing.T) {
		ok, err := hasher.Verify("correctpassword", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("incorrect password fails", func(t *testing.T) {
		ok, err := hasher.Verify("wrongpassword", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	malformed := []struct {
		name    string
		hash    string
		contain string
	}{
		{name: "not a PHC string", hash: "not-a-valid-hash"},
		{name: "wrong algorithm", hash: "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", contain: "unsupported hash algorithm"},
		{name: "bad version field", hash: "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{name: "unknown version", hash: "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{name: "bad parameters", hash: "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{name: "bad salt encoding", hash: "$argon2id$v=19$m=65536,t=1,p=4$!!!invalid!!!$aGFzaA"},
		{name: "bad key encoding", hash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!invalid!!!"},
		{name: "threads overflow", hash: "$argon2id$v=19$m=65536,t=1,p=256$c2FsdA$aGFzaA", contain: "threads value"},
	}
	for _, tt := range malformed {
		t.Run("returns error for "+tt.name, func(t *testing.T) {
			_, err := hasher.Verify("password", tt.hash)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "HASH_INVALID")
			if tt.contain != "" {
				assert.Contains(t, err.Error(), tt.contain)
			}
		})
	}
}

func TestArgon2idHasher_LegacyBcrypt(t *testing.T) {
	hasher := account.NewArgon2idHasher()

	legacy, err := bcrypt.GenerateFromPassword([]byte("oldpassword"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("verifies matching bcrypt hash", func(t *testing.T) {
		ok, err := hasher.Verify("oldpassword", string(legacy))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rejects wrong password against bcrypt hash", func(t *testing.T) {
		ok, err := hasher.Verify("newpassword", string(legacy))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("treats over-long input as mismatch", func(t *testing.T) {
		ok, err := hasher.Verify(strings.Repeat("a", 100), string(legacy))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("truncated bcrypt hash returns error", func(t *testing.T) {
		_, err := hasher.Verify("oldpassword", "$2a$10$short")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "HASH_INVALID")
	})

	t.Run("bcrypt hash needs upgrade", func(t *testing.T) {
		assert.True(t, hasher.NeedsUpgrade(string(legacy)))
	})

	t.Run("argon2id hash does not need upgrade", func(t *testing.T) {
		hash, err := hasher.Hash("password")
		require.NoError(t, err)
		assert.False(t, hasher.NeedsUpgrade(hash))
	})
}
