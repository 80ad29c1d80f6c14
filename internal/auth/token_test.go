// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/auth/memory"
	"github.com/holomush/holoauth/internal/auth/mocks"
	"github.com/holomush/holoauth/pkg/errutil"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTokenService(t *testing.T, banned auth.BannedTokenStore, opts ...auth.TokenOption) *auth.TokenService {
	t.Helper()
	svc, err := auth.NewTokenService(testSecret, time.Minute, banned, opts...)
	require.NoError(t, err)
	return svc
}

func TestNewTokenService_InvalidConfig(t *testing.T) {
	banned := memory.NewBannedTokenStore()

	tests := []struct {
		name   string
		secret []byte
		ttl    time.Duration
		banned auth.BannedTokenStore
		errMsg string
	}{
		{name: "short secret", secret: []byte("short"), ttl: time.Minute, banned: banned, errMsg: "at least 32 bytes"},
		{name: "zero ttl", secret: testSecret, ttl: 0, banned: banned, errMsg: "ttl must be positive"},
		{name: "nil banned store", secret: testSecret, ttl: time.Minute, errMsg: "banned token store is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewTokenService(tt.secret, tt.ttl, tt.banned)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.errMsg)
			errutil.AssertErrorCode(t, err, "TOKEN_CONFIG_INVALID")
		})
	}
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	ctx := context.Background()
	svc := newTokenService(t, memory.NewBannedTokenStore(), auth.WithIssuer("holoauth"))
	email := auth.MustParseEmail("a@b.com")

	token, err := svc.Issue(email)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	got, err := svc.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, email, got)
	assert.Equal(t, time.Minute, svc.TTL())
}

func TestTokenService_TokensAreUnique(t *testing.T) {
	svc := newTokenService(t, memory.NewBannedTokenStore())
	email := auth.MustParseEmail("a@b.com")

	first, err := svc.Issue(email)
	require.NoError(t, err)
	second, err := svc.Issue(email)
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "jti must differ between tokens")
}

func TestTokenService_Validate_Failures(t *testing.T) {
	ctx := context.Background()
	email := auth.MustParseEmail("a@b.com")

	t.Run("empty token is malformed", func(t *testing.T) {
		svc := newTokenService(t, memory.NewBannedTokenStore())
		_, err := svc.Validate(ctx, "")
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("garbage is malformed", func(t *testing.T) {
		svc := newTokenService(t, memory.NewBannedTokenStore())
		_, err := svc.Validate(ctx, "invalid")
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})

	t.Run("wrong secret is malformed", func(t *testing.T) {
		other, err := auth.NewTokenService([]byte("ffffffffffffffffffffffffffffffff"), time.Minute, memory.NewBannedTokenStore())
		require.NoError(t, err)
		token, err := other.Issue(email)
		require.NoError(t, err)

		svc := newTokenService(t, memory.NewBannedTokenStore())
		_, err = svc.Validate(ctx, token)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})

	t.Run("expired token", func(t *testing.T) {
		now := time.Now()
		clock := func() time.Time { return now }
		svc := newTokenService(t, memory.NewBannedTokenStore(), auth.WithClock(clock))

		token, err := svc.Issue(email)
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		_, err = svc.Validate(ctx, token)
		assert.ErrorIs(t, err, auth.ErrTokenExpired)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("missing exp is malformed", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: email.String(),
		}).SignedString(testSecret)
		require.NoError(t, err)

		svc := newTokenService(t, memory.NewBannedTokenStore())
		_, err = svc.Validate(ctx, raw)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})

	t.Run("other signing method is rejected", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
			Subject:   email.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}).SignedString(testSecret)
		require.NoError(t, err)

		svc := newTokenService(t, memory.NewBannedTokenStore())
		_, err = svc.Validate(ctx, raw)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})

	t.Run("wrong issuer is malformed", func(t *testing.T) {
		issuer := newTokenService(t, memory.NewBannedTokenStore(), auth.WithIssuer("someone-else"))
		token, err := issuer.Issue(email)
		require.NoError(t, err)

		svc := newTokenService(t, memory.NewBannedTokenStore(), auth.WithIssuer("holoauth"))
		_, err = svc.Validate(ctx, token)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})

	t.Run("banned token is revoked", func(t *testing.T) {
		banned := memory.NewBannedTokenStore()
		svc := newTokenService(t, banned)
		token, err := svc.Issue(email)
		require.NoError(t, err)
		require.NoError(t, banned.Ban(ctx, token))

		_, err = svc.Validate(ctx, token)
		assert.ErrorIs(t, err, auth.ErrTokenRevoked)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("banned store failure is not a token error", func(t *testing.T) {
		banned := mocks.NewMockBannedTokenStore(t)
		svc := newTokenService(t, banned)
		token, err := svc.Issue(email)
		require.NoError(t, err)

		banned.On("IsBanned", ctx, token).Return(false, errors.New("connection refused"))

		_, err = svc.Validate(ctx, token)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrInvalidToken)
		errutil.AssertErrorCode(t, err, "TOKEN_VALIDATE_FAILED")
	})
}
