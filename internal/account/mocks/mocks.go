// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks for the account package interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/accountd/internal/account"
)

// MockRepository is a mock implementation of account.Repository.
type MockRepository struct {
	mock.Mock
}

// NewMockRepository creates a MockRepository whose expectations are asserted on cleanup.
func NewMockRepository(t testing.TB) *MockRepository {
	m := &MockRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Insert provides a mock function.
func (m *MockRepository) Insert(ctx context.Context, acct *account.Account) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

// DeleteByUsername provides a mock function.
func (m *MockRepository) DeleteByUsername(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

// CredentialsByUsername provides a mock function.
func (m *MockRepository) CredentialsByUsername(ctx context.Context, username string) ([]account.Credential, error) {
	args := m.Called(ctx, username)
	var rows []account.Credential
	if v := args.Get(0); v != nil {
		rows = v.([]account.Credential)
	}
	return rows, args.Error(1)
}

// Ping provides a mock function.
func (m *MockRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockPasswordHasher is a mock implementation of account.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher whose expectations are asserted on cleanup.
func NewMockPasswordHasher(t testing.TB) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash provides a mock function.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify provides a mock function.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// NeedsUpgrade provides a mock function.
func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}

var (
	_ account.Repository     = (*MockRepository)(nil)
	_ account.PasswordHasher = (*MockPasswordHasher)(nil)
)
