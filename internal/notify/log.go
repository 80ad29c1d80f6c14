// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"log/slog"

	"github.com/holomush/holoauth/internal/auth"
)

// LogNotifier writes codes to the log at debug level. For local development
// only: the code is printed in clear.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements auth.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, email auth.Email, code auth.TwoFACode) error {
	n.logger.DebugContext(ctx, "2FA code issued", "email", email.String(), "code", code.String())
	return nil
}
