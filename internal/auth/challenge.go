// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// TwoFACodeLength is the number of decimal digits in a TwoFACode.
const TwoFACodeLength = 6

var twoFACodeSpace = big.NewInt(1_000_000)

// LoginAttemptID identifies a single login that is waiting on its 2FA step.
type LoginAttemptID struct {
	value string
}

// NewLoginAttemptID returns a random (version 4) attempt identifier.
func NewLoginAttemptID() LoginAttemptID {
	return LoginAttemptID{value: uuid.NewString()}
}

// ParseLoginAttemptID accepts a canonical UUID string.
func ParseLoginAttemptID(raw string) (LoginAttemptID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return LoginAttemptID{}, oops.Code("LOGIN_ATTEMPT_ID_INVALID").Wrap(errors.Join(ErrValidation, err))
	}
	return LoginAttemptID{value: id.String()}, nil
}

// String returns the canonical form.
func (id LoginAttemptID) String() string {
	return id.value
}

// TwoFACode is a six digit step-up code.
type TwoFACode struct {
	value string
}

// NewTwoFACode draws a uniformly random code from crypto/rand.
func NewTwoFACode() (TwoFACode, error) {
	n, err := rand.Int(rand.Reader, twoFACodeSpace)
	if err != nil {
		return TwoFACode{}, oops.Code("TWO_FA_CODE_GENERATE_FAILED").Wrap(err)
	}
	return TwoFACode{value: fmt.Sprintf("%06d", n.Int64())}, nil
}

// ParseTwoFACode accepts exactly six ASCII digits.
func ParseTwoFACode(raw string) (TwoFACode, error) {
	if len(raw) != TwoFACodeLength {
		return TwoFACode{}, oops.Code("TWO_FA_CODE_INVALID").
			Wrapf(ErrValidation, "code must be %d digits", TwoFACodeLength)
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return TwoFACode{}, oops.Code("TWO_FA_CODE_INVALID").
				Wrapf(ErrValidation, "code must be %d digits", TwoFACodeLength)
		}
	}
	return TwoFACode{value: raw}, nil
}

// String returns the digits.
func (c TwoFACode) String() string {
	return c.value
}

// Challenge is the pending 2FA step-up for one email.
type Challenge struct {
	LoginAttemptID LoginAttemptID
	Code           TwoFACode
}

// Matches reports whether attemptID and code both equal the challenge.
// Both comparisons run in constant time and are always evaluated.
func (c Challenge) Matches(attemptID, code string) bool {
	idMatch := subtle.ConstantTimeCompare([]byte(c.LoginAttemptID.String()), []byte(attemptID))
	codeMatch := subtle.ConstantTimeCompare([]byte(c.Code.String()), []byte(code))
	return idMatch&codeMatch == 1
}

// TwoFACodeStore holds at most one pending Challenge per email.
type TwoFACodeStore interface {
	// AddCode stores the challenge for email, replacing any existing one.
	AddCode(ctx context.Context, email Email, id LoginAttemptID, code TwoFACode) error

	// GetCode returns the pending challenge, or an error matching ErrNotFound.
	GetCode(ctx context.Context, email Email) (Challenge, error)

	// RemoveCode deletes the pending challenge. Removing a missing one is not an error.
	RemoveCode(ctx context.Context, email Email) error

	// ConsumeCode removes the pending challenge only if attemptID and code
	// match it, as one atomic step. It reports whether a challenge was
	// removed; a missing challenge or a mismatch returns false and leaves
	// the store unchanged.
	ConsumeCode(ctx context.Context, email Email, attemptID, code string) (bool, error)
}
