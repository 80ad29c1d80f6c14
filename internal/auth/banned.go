// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// BannedTokenStore records revoked session tokens. There is no un-ban.
type BannedTokenStore interface {
	// Ban records token as revoked. Banning twice is not an error.
	Ban(ctx context.Context, token string) error

	// IsBanned reports whether token has been revoked.
	IsBanned(ctx context.Context, token string) (bool, error)
}
