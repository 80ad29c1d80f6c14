// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/holoauth/internal/auth"
)

// testingT is the subset of *testing.T the constructors need.
type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserStore is a mock auth.UserStore.
type MockUserStore struct {
	mock.Mock
}

// NewMockUserStore creates a MockUserStore that asserts its expectations on cleanup.
func NewMockUserStore(t testingT) *MockUserStore {
	m := &MockUserStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Add implements auth.UserStore.
func (m *MockUserStore) Add(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// Get implements auth.UserStore.
func (m *MockUserStore) Get(ctx context.Context, email auth.Email) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

// Validate implements auth.UserStore.
func (m *MockUserStore) Validate(ctx context.Context, email auth.Email, password auth.Password) (*auth.User, error) {
	args := m.Called(ctx, email, password)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

// MockTwoFACodeStore is a mock auth.TwoFACodeStore.
type MockTwoFACodeStore struct {
	mock.Mock
}

// NewMockTwoFACodeStore creates a MockTwoFACodeStore that asserts its expectations on cleanup.
func NewMockTwoFACodeStore(t testingT) *MockTwoFACodeStore {
	m := &MockTwoFACodeStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// AddCode implements auth.TwoFACodeStore.
func (m *MockTwoFACodeStore) AddCode(ctx context.Context, email auth.Email, id auth.LoginAttemptID, code auth.TwoFACode) error {
	args := m.Called(ctx, email, id, code)
	return args.Error(0)
}

// GetCode implements auth.TwoFACodeStore.
func (m *MockTwoFACodeStore) GetCode(ctx context.Context, email auth.Email) (auth.Challenge, error) {
	args := m.Called(ctx, email)
	challenge, _ := args.Get(0).(auth.Challenge)
	return challenge, args.Error(1)
}

// RemoveCode implements auth.TwoFACodeStore.
func (m *MockTwoFACodeStore) RemoveCode(ctx context.Context, email auth.Email) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// ConsumeCode implements auth.TwoFACodeStore.
func (m *MockTwoFACodeStore) ConsumeCode(ctx context.Context, email auth.Email, attemptID, code string) (bool, error) {
	args := m.Called(ctx, email, attemptID, code)
	return args.Bool(0), args.Error(1)
}

// MockBannedTokenStore is a mock auth.BannedTokenStore.
type MockBannedTokenStore struct {
	mock.Mock
}

// NewMockBannedTokenStore creates a MockBannedTokenStore that asserts its expectations on cleanup.
func NewMockBannedTokenStore(t testingT) *MockBannedTokenStore {
	m := &MockBannedTokenStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Ban implements auth.BannedTokenStore.
func (m *MockBannedTokenStore) Ban(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// IsBanned implements auth.BannedTokenStore.
func (m *MockBannedTokenStore) IsBanned(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

// MockPasswordHasher is a mock auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher that asserts its expectations on cleanup.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash implements auth.PasswordHasher.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify implements auth.PasswordHasher.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// MockNotifier is a mock auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a MockNotifier that asserts its expectations on cleanup.
func NewMockNotifier(t testingT) *MockNotifier {
	m := &MockNotifier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Notify implements auth.Notifier.
func (m *MockNotifier) Notify(ctx context.Context, email auth.Email, code auth.TwoFACode) error {
	args := m.Called(ctx, email, code)
	return args.Error(0)
}
