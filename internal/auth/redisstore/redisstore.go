// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redisstore provides Redis implementations of the 2FA challenge
// and banned token stores. Every operation is a single Redis command or
// script, so concurrent handlers never observe partial writes.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/holoauth/internal/auth"
)

const (
	bannedTokenKeyPrefix = "banned_token:"
	twoFACodeKeyPrefix   = "two_fa_code:"
)

// Options configures Dial.
type Options struct {
	Addr       string
	Password   string
	DB         int
	MaxRetries uint64
	BaseDelay  time.Duration
}

// Dial connects to Redis and pings it, retrying with exponential backoff.
func Dial(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	base := opts.BaseDelay
	if base <= 0 {
		base = 200 * time.Millisecond
	}

	attempt := 0
	err := retry.Do(ctx, retry.WithMaxRetries(opts.MaxRetries, retry.NewExponential(base)), func(ctx context.Context) error {
		attempt++
		if pingErr := client.Ping(ctx).Err(); pingErr != nil {
			slog.Warn("redis not ready", "addr", opts.Addr, "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").
			With("addr", opts.Addr).
			With("attempts", attempt).
			Wrap(err)
	}
	return client, nil
}

// BannedTokenStore implements auth.BannedTokenStore on Redis. Entries
// expire with the token lifetime; a banned token cannot outlive its ban.
type BannedTokenStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewBannedTokenStore creates a BannedTokenStore. A zero ttl keeps entries forever.
func NewBannedTokenStore(client redis.Cmdable, ttl time.Duration) *BannedTokenStore {
	return &BannedTokenStore{client: client, ttl: ttl}
}

// Ban implements auth.BannedTokenStore.
func (s *BannedTokenStore) Ban(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, bannedTokenKeyPrefix+token, 1, s.ttl).Err(); err != nil {
		return oops.Code("BANNED_TOKEN_CREATE_FAILED").With("operation", "set banned token").Wrap(err)
	}
	return nil
}

// IsBanned implements auth.BannedTokenStore.
func (s *BannedTokenStore) IsBanned(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, bannedTokenKeyPrefix+token).Result()
	if err != nil {
		return false, oops.Code("BANNED_TOKEN_GET_FAILED").With("operation", "check banned token").Wrap(err)
	}
	return n > 0, nil
}

// TwoFACodeStore implements auth.TwoFACodeStore on Redis, one key per email.
type TwoFACodeStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewTwoFACodeStore creates a TwoFACodeStore. A zero ttl keeps challenges
// until they are verified or replaced.
func NewTwoFACodeStore(client redis.Cmdable, ttl time.Duration) *TwoFACodeStore {
	return &TwoFACodeStore{client: client, ttl: ttl}
}

// consumeScript deletes KEYS[1] only when its record carries the attempt id
// ARGV[1] and the code ARGV[2]. It returns 1 when the key was deleted.
var consumeScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
	return 0
end
local record = cjson.decode(raw)
if record.login_attempt_id ~= ARGV[1] or record.code ~= ARGV[2] then
	return 0
end
redis.call("DEL", KEYS[1])
return 1
`)

type challengeRecord struct {
	LoginAttemptID string `json:"login_attempt_id"`
	Code           string `json:"code"`
}

// AddCode implements auth.TwoFACodeStore. SET overwrites any existing challenge.
func (s *TwoFACodeStore) AddCode(ctx context.Context, email auth.Email, id auth.LoginAttemptID, code auth.TwoFACode) error {
	payload, err := json.Marshal(challengeRecord{LoginAttemptID: id.String(), Code: code.String()})
	if err != nil {
		return oops.Code("TWO_FA_CODE_CREATE_FAILED").With("operation", "encode challenge").Wrap(err)
	}
	if err := s.client.Set(ctx, twoFACodeKeyPrefix+email.String(), payload, s.ttl).Err(); err != nil {
		return oops.Code("TWO_FA_CODE_CREATE_FAILED").With("operation", "set challenge").Wrap(err)
	}
	return nil
}

// GetCode implements auth.TwoFACodeStore.
func (s *TwoFACodeStore) GetCode(ctx context.Context, email auth.Email) (auth.Challenge, error) {
	data, err := s.client.Get(ctx, twoFACodeKeyPrefix+email.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return auth.Challenge{}, oops.Code("TWO_FA_CODE_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return auth.Challenge{}, oops.Code("TWO_FA_CODE_GET_FAILED").With("operation", "get challenge").Wrap(err)
	}

	var record challengeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return auth.Challenge{}, oops.Code("TWO_FA_CODE_GET_FAILED").With("operation", "decode challenge").Wrap(err)
	}
	// Parse errors match auth.ErrValidation; corrupt stored data must not.
	id, err := auth.ParseLoginAttemptID(record.LoginAttemptID)
	if err != nil {
		return auth.Challenge{}, oops.Code("TWO_FA_CODE_GET_FAILED").Errorf("stored challenge has invalid attempt id")
	}
	code, err := auth.ParseTwoFACode(record.Code)
	if err != nil {
		return auth.Challenge{}, oops.Code("TWO_FA_CODE_GET_FAILED").Errorf("stored challenge has invalid code")
	}
	return auth.Challenge{LoginAttemptID: id, Code: code}, nil
}

// RemoveCode implements auth.TwoFACodeStore.
func (s *TwoFACodeStore) RemoveCode(ctx context.Context, email auth.Email) error {
	if err := s.client.Del(ctx, twoFACodeKeyPrefix+email.String()).Err(); err != nil {
		return oops.Code("TWO_FA_CODE_DELETE_FAILED").With("operation", "delete challenge").Wrap(err)
	}
	return nil
}

// ConsumeCode implements auth.TwoFACodeStore. Redis runs the script
// atomically, so two submissions of the same code cannot both delete it.
func (s *TwoFACodeStore) ConsumeCode(ctx context.Context, email auth.Email, attemptID, code string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{twoFACodeKeyPrefix + email.String()}, attemptID, code).Int()
	if err != nil {
		return false, oops.Code("TWO_FA_CODE_DELETE_FAILED").With("operation", "consume challenge").Wrap(err)
	}
	return n == 1, nil
}
