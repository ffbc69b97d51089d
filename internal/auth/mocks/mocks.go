// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/accountd/internal/account"
	"github.com/holomush/accountd/internal/token"
)

// MockAccountStore is a mock implementation of auth.AccountStore.
type MockAccountStore struct {
	mock.Mock
}

// NewMockAccountStore creates a MockAccountStore whose expectations are asserted on cleanup.
func NewMockAccountStore(t testing.TB) *MockAccountStore {
	m := &MockAccountStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create provides a mock function.
func (m *MockAccountStore) Create(ctx context.Context, username, email, credential string) (*account.Account, error) {
	args := m.Called(ctx, username, email, credential)
	var acct *account.Account
	if v := args.Get(0); v != nil {
		acct = v.(*account.Account)
	}
	return acct, args.Error(1)
}

// Delete provides a mock function.
func (m *MockAccountStore) Delete(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

// FindByCredentials provides a mock function.
func (m *MockAccountStore) FindByCredentials(ctx context.Context, username, credential string) (ulid.ULID, bool, error) {
	args := m.Called(ctx, username, credential)
	var id ulid.ULID
	if v := args.Get(0); v != nil {
		id = v.(ulid.ULID)
	}
	return id, args.Bool(1), args.Error(2)
}

// MockTokenIssuer is a mock implementation of auth.TokenIssuer.
type MockTokenIssuer struct {
	mock.Mock
}

// NewMockTokenIssuer creates a MockTokenIssuer whose expectations are asserted on cleanup.
func NewMockTokenIssuer(t testing.TB) *MockTokenIssuer {
	m := &MockTokenIssuer{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Issue provides a mock function.
func (m *MockTokenIssuer) Issue(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

// Verify provides a mock function.
func (m *MockTokenIssuer) Verify(ctx context.Context, tok string) (*token.Claims, error) {
	args := m.Called(ctx, tok)
	var claims *token.Claims
	if v := args.Get(0); v != nil {
		claims = v.(*token.Claims)
	}
	return claims, args.Error(1)
}
