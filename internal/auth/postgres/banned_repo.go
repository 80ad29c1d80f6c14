// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// BannedTokenRepository implements auth.BannedTokenStore using PostgreSQL.
type BannedTokenRepository struct {
	pool poolIface
	ttl  time.Duration
	now  func() time.Time
}

// NewBannedTokenRepository creates a BannedTokenRepository. ttl is the
// session token lifetime; rows past it may be purged with DeleteExpired.
// A zero ttl keeps entries forever.
func NewBannedTokenRepository(pool poolIface, ttl time.Duration) *BannedTokenRepository {
	return &BannedTokenRepository{pool: pool, ttl: ttl, now: time.Now}
}

// Ban implements auth.BannedTokenStore.
func (r *BannedTokenRepository) Ban(ctx context.Context, token string) error {
	var expiresAt *time.Time
	if r.ttl > 0 {
		t := r.now().Add(r.ttl).UTC()
		expiresAt = &t
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO banned_tokens (token, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (token) DO NOTHING
	`, token, expiresAt)
	if err != nil {
		return oops.Code("BANNED_TOKEN_CREATE_FAILED").With("operation", "insert banned token").Wrap(err)
	}
	return nil
}

// IsBanned implements auth.BannedTokenStore.
func (r *BannedTokenRepository) IsBanned(ctx context.Context, token string) (bool, error) {
	var banned bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM banned_tokens WHERE token = $1)
	`, token).Scan(&banned)
	if err != nil {
		return false, oops.Code("BANNED_TOKEN_GET_FAILED").With("operation", "check banned token").Wrap(err)
	}
	return banned, nil
}

// DeleteExpired removes ban entries whose tokens have expired on their own.
// Returns the number of rows removed.
func (r *BannedTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM banned_tokens WHERE expires_at IS NOT NULL AND expires_at < $1
	`, r.now().UTC())
	if err != nil {
		return 0, oops.Code("BANNED_TOKEN_PURGE_FAILED").With("operation", "delete expired banned tokens").Wrap(err)
	}
	return tag.RowsAffected(), nil
}
