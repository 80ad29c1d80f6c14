// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"strings"

	"github.com/samber/oops"
)

// MaxEmailLength is the longest address accepted (RFC 5321 path limit).
const MaxEmailLength = 254

// Email is a validated, normalized email address.
// The zero value is not a valid Email; use ParseEmail.
type Email struct {
	value string
}

// ParseEmail validates raw and returns its normalized form.
// Surrounding whitespace is trimmed and the address is lower-cased, so two
// spellings of the same address compare equal.
func ParseEmail(raw string) (Email, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return Email{}, oops.Code("EMAIL_INVALID").Wrapf(ErrValidation, "email cannot be empty")
	}
	if len(normalized) > MaxEmailLength {
		return Email{}, oops.Code("EMAIL_INVALID").
			With("length", len(normalized)).
			Wrapf(ErrValidation, "email exceeds %d characters", MaxEmailLength)
	}
	if strings.Count(normalized, "@") != 1 {
		return Email{}, oops.Code("EMAIL_INVALID").Wrapf(ErrValidation, "email must contain exactly one @")
	}
	local, domain, _ := strings.Cut(normalized, "@")
	if local == "" || domain == "" {
		return Email{}, oops.Code("EMAIL_INVALID").Wrapf(ErrValidation, "email must have a local part and a domain")
	}
	if strings.ContainsAny(normalized, " \t\r\n") {
		return Email{}, oops.Code("EMAIL_INVALID").Wrapf(ErrValidation, "email cannot contain whitespace")
	}
	return Email{value: normalized}, nil
}

// MustParseEmail is like ParseEmail but panics on invalid input.
// Intended for tests and constants.
func MustParseEmail(raw string) Email {
	e, err := ParseEmail(raw)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the normalized address.
func (e Email) String() string {
	return e.value
}

// IsZero reports whether e is the zero Email.
func (e Email) IsZero() bool {
	return e.value == ""
}
