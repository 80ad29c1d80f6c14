// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User is a registered account. Users are immutable once created.
type User struct {
	ID           ulid.ULID
	Email        Email
	PasswordHash string
	Requires2FA  bool
	CreatedAt    time.Time
}

// NewUser creates a User with a fresh ID.
func NewUser(email Email, passwordHash string, requires2FA bool) (*User, error) {
	if email.IsZero() {
		return nil, oops.Code("USER_INVALID").Errorf("email is required")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID").Errorf("password hash is required")
	}
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		Requires2FA:  requires2FA,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// UserStore persists users keyed by unique email.
type UserStore interface {
	// Add inserts user. Returns an error matching ErrUserExists if the email
	// is already registered.
	Add(ctx context.Context, user *User) error

	// Get returns the user for email, or an error matching ErrNotFound.
	Get(ctx context.Context, email Email) (*User, error)

	// Validate returns the user when password matches the stored hash.
	// An unknown email and a wrong password both yield an error matching
	// ErrInvalidCredentials after the same amount of hashing work.
	Validate(ctx context.Context, email Email, password Password) (*User, error)
}

// dummyPasswordHash is verified against when a user doesn't exist so that
// unknown emails cost the same as wrong passwords. It never matches.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// ValidateCredentials runs the shared email/password check used by every
// UserStore implementation. lookup is the store's raw fetch; it must return
// an error matching ErrNotFound for unknown emails.
func ValidateCredentials(
	ctx context.Context,
	hasher PasswordHasher,
	email Email,
	password Password,
	lookup func(ctx context.Context, email Email) (*User, error),
) (*User, error) {
	user, lookupErr := lookup(ctx, email)

	var targetHash string
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case isNotFound(lookupErr):
		targetHash = dummyPasswordHash
	default:
		return nil, oops.Code("USER_VALIDATE_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	// Always verify, even for unknown users.
	valid, verifyErr := hasher.Verify(password.Reveal(), targetHash)
	if verifyErr != nil && userExists {
		return nil, oops.Code("USER_VALIDATE_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}
	return user, nil
}
