// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides in-process implementations of the auth stores.
// All stores are safe for concurrent use; readers share the lock and
// writers hold it exclusively.
package memory

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// UserStore implements auth.UserStore with a map keyed by email.
type UserStore struct {
	hasher auth.PasswordHasher

	mu    sync.RWMutex
	users map[auth.Email]auth.User
}

// NewUserStore creates an empty UserStore. hasher verifies passwords in Validate.
func NewUserStore(hasher auth.PasswordHasher) *UserStore {
	return &UserStore{
		hasher: hasher,
		users:  make(map[auth.Email]auth.User),
	}
}

// Add implements auth.UserStore.
func (s *UserStore) Add(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Email]; exists {
		return oops.Code("USER_EXISTS").With("email", user.Email.String()).Wrap(auth.ErrUserExists)
	}
	s.users[user.Email] = *user
	return nil
}

// Get implements auth.UserStore.
func (s *UserStore) Get(_ context.Context, email auth.Email) (*auth.User, error) {
	s.mu.RLock()
	user, ok := s.users[email]
	s.mu.RUnlock()

	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email.String()).Wrap(auth.ErrNotFound)
	}
	return &user, nil
}

// Validate implements auth.UserStore. Hashing runs outside the lock.
func (s *UserStore) Validate(ctx context.Context, email auth.Email, password auth.Password) (*auth.User, error) {
	return auth.ValidateCredentials(ctx, s.hasher, email, password, s.Get)
}

// Len returns the number of stored users.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// TwoFACodeStore implements auth.TwoFACodeStore with a map keyed by email.
type TwoFACodeStore struct {
	mu    sync.RWMutex
	codes map[auth.Email]auth.Challenge
}

// NewTwoFACodeStore creates an empty TwoFACodeStore.
func NewTwoFACodeStore() *TwoFACodeStore {
	return &TwoFACodeStore{codes: make(map[auth.Email]auth.Challenge)}
}

// AddCode implements auth.TwoFACodeStore.
func (s *TwoFACodeStore) AddCode(_ context.Context, email auth.Email, id auth.LoginAttemptID, code auth.TwoFACode) error {
	s.mu.Lock()
	s.codes[email] = auth.Challenge{LoginAttemptID: id, Code: code}
	s.mu.Unlock()
	return nil
}

// GetCode implements auth.TwoFACodeStore.
func (s *TwoFACodeStore) GetCode(_ context.Context, email auth.Email) (auth.Challenge, error) {
	s.mu.RLock()
	challenge, ok := s.codes[email]
	s.mu.RUnlock()

	if !ok {
		return auth.Challenge{}, oops.Code("TWO_FA_CODE_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return challenge, nil
}

// RemoveCode implements auth.TwoFACodeStore.
func (s *TwoFACodeStore) RemoveCode(_ context.Context, email auth.Email) error {
	s.mu.Lock()
	delete(s.codes, email)
	s.mu.Unlock()
	return nil
}

// ConsumeCode implements auth.TwoFACodeStore. The compare and the delete
// share one exclusive section.
func (s *TwoFACodeStore) ConsumeCode(_ context.Context, email auth.Email, attemptID, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.codes[email]
	if !ok || !challenge.Matches(attemptID, code) {
		return false, nil
	}
	delete(s.codes, email)
	return true, nil
}

// BannedTokenStore implements auth.BannedTokenStore with a set.
// Entries are never evicted.
type BannedTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
}

// NewBannedTokenStore creates an empty BannedTokenStore.
func NewBannedTokenStore() *BannedTokenStore {
	return &BannedTokenStore{tokens: make(map[string]struct{})}
}

// Ban implements auth.BannedTokenStore.
func (s *BannedTokenStore) Ban(_ context.Context, token string) error {
	s.mu.Lock()
	s.tokens[token] = struct{}{}
	s.mu.Unlock()
	return nil
}

// IsBanned implements auth.BannedTokenStore.
func (s *BannedTokenStore) IsBanned(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	_, banned := s.tokens[token]
	s.mu.RUnlock()
	return banned, nil
}
