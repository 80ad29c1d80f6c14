// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"unicode/utf8"

	"github.com/samber/oops"
)

// MinPasswordLength is the minimum number of characters in a password.
const MinPasswordLength = 8

// Password is a validated plaintext password. It exists only on the way to
// the hasher and must never be logged or persisted.
type Password struct {
	value string
}

// ParsePassword validates raw. Length is measured in characters, not bytes.
func ParsePassword(raw string) (Password, error) {
	if n := utf8.RuneCountInString(raw); n < MinPasswordLength {
		return Password{}, oops.Code("PASSWORD_INVALID").
			With("min_length", MinPasswordLength).
			Wrapf(ErrValidation, "password must be at least %d characters", MinPasswordLength)
	}
	return Password{value: raw}, nil
}

// Reveal returns the plaintext. Call sites are limited to hashing and verification.
func (p Password) Reveal() string {
	return p.value
}

// String redacts the value so a Password cannot leak through formatting.
func (p Password) String() string {
	return "[REDACTED]"
}
