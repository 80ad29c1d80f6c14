// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/pkg/errutil"
)

// DefaultNotifyTimeout bounds a single 2FA code delivery.
const DefaultNotifyTimeout = 10 * time.Second

// ServiceConfig holds the dependencies of a Service.
type ServiceConfig struct {
	Users    UserStore
	Codes    TwoFACodeStore
	Banned   BannedTokenStore
	Hasher   PasswordHasher
	Tokens   *TokenService
	Notifier Notifier

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// NotifyTimeout defaults to DefaultNotifyTimeout.
	NotifyTimeout time.Duration
}

// Service runs the credential flows.
type Service struct {
	users         UserStore
	codes         TwoFACodeStore
	banned        BannedTokenStore
	hasher        PasswordHasher
	tokens        *TokenService
	notifier      Notifier
	logger        *slog.Logger
	notifyTimeout time.Duration

	notifications sync.WaitGroup
}

// NewService creates a Service. Every store, the hasher, the token service
// and the notifier are required.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Users == nil:
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("user store is required")
	case cfg.Codes == nil:
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("2FA code store is required")
	case cfg.Banned == nil:
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("banned token store is required")
	case cfg.Hasher == nil:
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("password hasher is required")
	case cfg.Tokens == nil:
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("token service is required")
	case cfg.Notifier == nil:
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("notifier is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}

	return &Service{
		users:         cfg.Users,
		codes:         cfg.Codes,
		banned:        cfg.Banned,
		hasher:        cfg.Hasher,
		tokens:        cfg.Tokens,
		notifier:      cfg.Notifier,
		logger:        logger,
		notifyTimeout: timeout,
	}, nil
}

// Signup registers a new user.
func (s *Service) Signup(ctx context.Context, rawEmail, rawPassword string, requires2FA bool) (*User, error) {
	email, err := ParseEmail(rawEmail)
	if err != nil {
		return nil, oops.With("flow", "signup").Wrap(err)
	}
	password, err := ParsePassword(rawPassword)
	if err != nil {
		return nil, oops.With("flow", "signup").Wrap(err)
	}

	hash, err := s.hasher.Hash(password.Reveal())
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := NewUser(email, hash, requires2FA)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").With("operation", "create user").Wrap(err)
	}

	if err := s.users.Add(ctx, user); err != nil {
		return nil, oops.With("flow", "signup").With("email", email.String()).Wrap(err)
	}

	s.logger.InfoContext(ctx, "user signed up",
		"user_id", user.ID.String(),
		"requires_2fa", requires2FA,
	)
	return user, nil
}

// LoginResult is the outcome of a successful password check.
// Exactly one of Token and LoginAttemptID is set.
type LoginResult struct {
	Token          string
	LoginAttemptID LoginAttemptID
	Requires2FA    bool
}

// Login checks email and password. Users without 2FA receive a session token.
// Users with 2FA get a pending challenge, and the code is delivered in the
// background; the caller only sees the attempt id.
func (s *Service) Login(ctx context.Context, rawEmail, rawPassword string) (*LoginResult, error) {
	email, err := ParseEmail(rawEmail)
	if err != nil {
		return nil, oops.With("flow", "login").Wrap(err)
	}
	password, err := ParsePassword(rawPassword)
	if err != nil {
		return nil, oops.With("flow", "login").Wrap(err)
	}

	user, err := s.users.Validate(ctx, email, password)
	if err != nil {
		return nil, oops.With("flow", "login").Wrap(err)
	}

	if !user.Requires2FA {
		token, err := s.tokens.Issue(user.Email)
		if err != nil {
			return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "issue token").Wrap(err)
		}
		return &LoginResult{Token: token}, nil
	}

	attemptID := NewLoginAttemptID()
	code, err := NewTwoFACode()
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "generate 2FA code").Wrap(err)
	}

	if err := s.codes.AddCode(ctx, user.Email, attemptID, code); err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "store 2FA code").Wrap(err)
	}

	s.dispatchNotification(ctx, user.Email, code)

	return &LoginResult{LoginAttemptID: attemptID, Requires2FA: true}, nil
}

// dispatchNotification delivers code without blocking the caller. The
// delivery outlives request cancellation but is bounded by notifyTimeout.
func (s *Service) dispatchNotification(ctx context.Context, email Email, code TwoFACode) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)

	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		defer cancel()

		if err := s.notifier.Notify(notifyCtx, email, code); err != nil {
			errutil.LogError(s.logger, "2FA code delivery failed", err)
		}
	}()
}

// Verify2FA completes a 2FA login. The store compares and removes the
// challenge in one step, so concurrent submissions of the same code yield
// at most one token. A mismatch leaves the challenge in place.
func (s *Service) Verify2FA(ctx context.Context, rawEmail, attemptID, code string) (string, error) {
	email, err := ParseEmail(rawEmail)
	if err != nil {
		return "", oops.With("flow", "verify_2fa").Wrap(err)
	}

	consumed, err := s.codes.ConsumeCode(ctx, email, attemptID, code)
	if err != nil {
		return "", oops.Code("AUTH_VERIFY_2FA_FAILED").With("operation", "consume 2FA code").Wrap(err)
	}
	if !consumed {
		return "", oops.Code("AUTH_INVALID_CREDENTIALS").
			With("flow", "verify_2fa").
			Wrap(ErrInvalidCredentials)
	}

	token, err := s.tokens.Issue(email)
	if err != nil {
		return "", oops.Code("AUTH_VERIFY_2FA_FAILED").With("operation", "issue token").Wrap(err)
	}
	return token, nil
}

// Logout revokes token for every holder.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return oops.Code("AUTH_MISSING_TOKEN").With("flow", "logout").Wrap(ErrMissingToken)
	}

	email, err := s.tokens.Validate(ctx, token)
	if err != nil {
		return oops.With("flow", "logout").Wrap(err)
	}

	if err := s.banned.Ban(ctx, token); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").With("operation", "ban token").Wrap(err)
	}

	s.logger.InfoContext(ctx, "user logged out", "email_domain", emailDomain(email))
	return nil
}

// VerifyToken reports whether token is usable. It has no side effects.
func (s *Service) VerifyToken(ctx context.Context, token string) (Email, error) {
	email, err := s.tokens.Validate(ctx, token)
	if err != nil {
		return Email{}, oops.With("flow", "verify_token").Wrap(err)
	}
	return email, nil
}

// Wait blocks until in-flight 2FA deliveries finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.notifications.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.Code("AUTH_NOTIFY_DRAIN_TIMEOUT").Wrap(ctx.Err())
	}
}

func emailDomain(e Email) string {
	_, domain, _ := strings.Cut(e.value, "@")
	return domain
}
