// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// Notifier delivers a 2FA code to the owner of email.
// Delivery is best effort; the login flow never fails because of it.
type Notifier interface {
	Notify(ctx context.Context, email Email, code TwoFACode) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, email Email, code TwoFACode) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, email Email, code TwoFACode) error {
	return f(ctx, email, code)
}
