// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// MinTokenSecretLength is the minimum HMAC secret length in bytes.
const MinTokenSecretLength = 32

// DefaultTokenTTL is the session token lifetime when none is configured.
const DefaultTokenTTL = 10 * time.Minute

// TokenClaims are the claims carried by a session token.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	banned BannedTokenStore
	now    func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithIssuer sets the iss claim written and required by the service.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) { s.issuer = issuer }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService creates a TokenService. banned is consulted on every validation.
func NewTokenService(secret []byte, ttl time.Duration, banned BannedTokenStore, opts ...TokenOption) (*TokenService, error) {
	if len(secret) < MinTokenSecretLength {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("min_length", MinTokenSecretLength).
			Errorf("token secret must be at least %d bytes", MinTokenSecretLength)
	}
	if ttl <= 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("token ttl must be positive, got %s", ttl)
	}
	if banned == nil {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("banned token store is required")
	}

	s := &TokenService{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		banned: banned,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a new token for email.
func (s *TokenService) Issue(email Email) (string, error) {
	now := s.now()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("email", email.String()).Wrap(err)
	}
	return signed, nil
}

// Validate checks the signature, expiry and ban status of token and returns
// the email it was issued to. Failures match ErrTokenExpired,
// ErrTokenMalformed or ErrTokenRevoked, and all of them match ErrInvalidToken.
func (s *TokenService) Validate(ctx context.Context, token string) (Email, error) {
	if token == "" {
		return Email{}, oops.Code("TOKEN_INVALID").Wrap(ErrTokenMalformed)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}

	claims := &TokenClaims{}
	_, err := jwt.NewParser(parserOpts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Email{}, oops.Code("TOKEN_INVALID").With("reason", "expired").Wrap(ErrTokenExpired)
		}
		return Email{}, oops.Code("TOKEN_INVALID").With("reason", err.Error()).Wrap(ErrTokenMalformed)
	}

	email, err := ParseEmail(claims.Subject)
	if err != nil {
		return Email{}, oops.Code("TOKEN_INVALID").With("reason", "bad subject").Wrap(ErrTokenMalformed)
	}

	banned, err := s.banned.IsBanned(ctx, token)
	if err != nil {
		return Email{}, oops.Code("TOKEN_VALIDATE_FAILED").
			With("operation", "check banned tokens").
			Wrap(err)
	}
	if banned {
		return Email{}, oops.Code("TOKEN_INVALID").With("reason", "revoked").Wrap(ErrTokenRevoked)
	}

	return email, nil
}
