// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// Sentinel errors sit at the bottom of every error chain returned by this
// package and its stores. Callers classify failures with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when a credential value fails domain validation.
	ErrValidation = errors.New("invalid credentials")

	// ErrUserExists is returned when signing up an email that is already registered.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials is returned when an email/password pair or a 2FA
	// challenge does not match.
	ErrInvalidCredentials = errors.New("incorrect credentials")

	// ErrMissingToken is returned when a flow that needs a session token gets none.
	ErrMissingToken = errors.New("missing token")

	// ErrInvalidToken is the parent of every token validation failure.
	ErrInvalidToken = errors.New("invalid token")
)

// Token validation failures. Each one also matches ErrInvalidToken.
var (
	ErrTokenExpired   = &tokenError{reason: "token expired"}
	ErrTokenMalformed = &tokenError{reason: "token malformed"}
	ErrTokenRevoked   = &tokenError{reason: "token revoked"}
)

type tokenError struct {
	reason string
}

func (e *tokenError) Error() string { return e.reason }

func (e *tokenError) Is(target error) bool {
	return target == ErrInvalidToken || target == e
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
