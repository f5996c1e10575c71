// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

// Package postgres implements the account package's persistence interfaces
// using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/Cazexotono/MasterApi/internal/account"
)

// db abstracts query execution so repositories work against both
// *pgxpool.Pool and pgxmock pools in tests.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements account.Repository using PostgreSQL.
type UserRepository struct {
	db db
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db db) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new account and fills in its assigned id.
func (r *UserRepository) Create(ctx context.Context, user *account.User) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (
			email, password_hash, verified, display_name,
			avatar, description, locale, reg_ip, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING user_id
	`,
		user.Email,
		user.PasswordHash,
		user.Verified,
		user.DisplayName,
		nullable(user.Avatar),
		nullable(user.Description),
		nullable(user.Locale),
		user.RegIP.String(),
		user.CreatedAt,
	)

	if err := row.Scan(&user.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return account.ErrEmailTaken
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*account.User, error) {
	return r.get(ctx, `WHERE user_id = $1`, id)
}

// GetByEmail retrieves an account by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*account.User, error) {
	return r.get(ctx, `WHERE email = $1`, email)
}

func (r *UserRepository) get(ctx context.Context, where string, arg any) (*account.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT user_id, email, password_hash, verified, display_name,
		       avatar, description, locale, reg_ip, last_ip, last_login,
		       created_at, updated_at
		FROM users
	`+where, arg)

	var (
		user                  account.User
		avatar, descr, locale *string
		regIP, lastIP         *string
		lastLogin             *time.Time
	)
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Verified, &user.DisplayName,
		&avatar, &descr, &locale, &regIP, &lastIP, &lastLogin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("USER_LOOKUP_FAILED").
			With("operation", "get user").
			Wrap(err)
	}

	user.Avatar = deref(avatar)
	user.Description = deref(descr)
	user.Locale = deref(locale)
	if regIP != nil {
		user.RegIP, _ = netip.ParseAddr(*regIP)
	}
	if lastIP != nil {
		user.LastIP, _ = netip.ParseAddr(*lastIP)
	}
	if lastLogin != nil {
		user.LastLogin = *lastLogin
	}
	return &user, nil
}

// UpdateProfile applies a partial profile update using COALESCE so absent
// fields keep their current values.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, update account.ProfileUpdate) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users
		SET display_name = COALESCE($2, display_name),
		    avatar       = COALESCE($3, avatar),
		    description  = COALESCE($4, description),
		    locale       = COALESCE($5, locale),
		    updated_at   = now()
		WHERE user_id = $1
	`,
		id,
		update.DisplayName,
		update.Avatar,
		update.Description,
		update.Locale,
	)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update profile").
			With("user_id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return account.ErrNotFound
	}
	return nil
}

// RecordLogin stores the time and source address of a login.
func (r *UserRepository) RecordLogin(ctx context.Context, id int64, ip netip.Addr, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET last_ip = $2, last_login = $3
		WHERE user_id = $1
	`, id, ip.String(), at)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "record login").
			With("user_id", id).
			Wrap(err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Compile-time interface check.
var _ account.Repository = (*UserRepository)(nil)
