// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres provides PostgreSQL implementations of the auth stores.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool the repositories use.
// pgxmock.PgxPoolIface satisfies it in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements auth.UserStore using PostgreSQL.
type UserRepository struct {
	pool   poolIface
	hasher auth.PasswordHasher
}

// NewUserRepository creates a new UserRepository. hasher verifies passwords in Validate.
func NewUserRepository(pool poolIface, hasher auth.PasswordHasher) *UserRepository {
	return &UserRepository{pool: pool, hasher: hasher}
}

// Add implements auth.UserStore. The unique email index decides concurrent
// signups for the same address.
func (r *UserRepository) Add(ctx context.Context, user *auth.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, requires_2fa, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		user.ID.String(),
		user.Email.String(),
		user.PasswordHash,
		user.Requires2FA,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_EXISTS").
				With("email", user.Email.String()).
				Wrap(auth.ErrUserExists)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email.String()).
			Wrap(err)
	}
	return nil
}

// Get implements auth.UserStore.
func (r *UserRepository) Get(ctx context.Context, email auth.Email) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, requires_2fa, created_at
		FROM users
		WHERE email = $1
	`, email.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by email").
			With("email", email.String()).
			Wrap(err)
	}
	return user, nil
}

// Validate implements auth.UserStore.
func (r *UserRepository) Validate(ctx context.Context, email auth.Email, password auth.Password) (*auth.User, error) {
	return auth.ValidateCredentials(ctx, r.hasher, email, password, r.Get)
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr       string
		emailStr    string
		hash        string
		requires2FA bool
		createdAt   time.Time
	)
	if err := row.Scan(&idStr, &emailStr, &hash, &requires2FA, &createdAt); err != nil {
		return nil, err //nolint:wrapcheck // callers classify pgx.ErrNoRows
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse user id").With("id", idStr).Wrap(err)
	}
	// Parse errors match auth.ErrValidation; a bad stored row is a server fault.
	email, err := auth.ParseEmail(emailStr)
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("operation", "parse stored email").Errorf("stored user has invalid email")
	}

	return &auth.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Requires2FA:  requires2FA,
		CreatedAt:    createdAt,
	}, nil
}
