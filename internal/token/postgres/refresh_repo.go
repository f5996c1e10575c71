// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

// Package postgres implements the token package's persistence interfaces
// using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/Cazexotono/MasterApi/internal/token"
)

// db abstracts query execution so repositories work against both
// *pgxpool.Pool and pgxmock pools in tests.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RefreshTokenRepository implements token.RefreshTokenRepository using
// PostgreSQL. The refresh_tokens table is keyed on (subject, device), so
// the upsert is what invalidates a superseded token for the same pair.
type RefreshTokenRepository struct {
	db db
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(db db) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Upsert inserts the record, replacing any record for the same
// (subject, device) pair.
func (r *RefreshTokenRepository) Upsert(ctx context.Context, record *token.RefreshRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO refresh_tokens (jti, subject, device, token, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subject, device)
		DO UPDATE SET jti = $1, token = $4, expires_at = $5
	`,
		record.JTI,
		record.Subject,
		record.Device,
		record.Token,
		record.ExpiresAt,
	)
	if err != nil {
		return oops.Code("REFRESH_UPSERT_FAILED").
			With("operation", "upsert refresh_token").
			With("subject", record.Subject).
			Wrap(err)
	}
	return nil
}

// FindByJTI retrieves a record by jti.
func (r *RefreshTokenRepository) FindByJTI(ctx context.Context, jti string) (*token.RefreshRecord, error) {
	row := r.db.QueryRow(ctx, `
		SELECT jti, subject, device, token, expires_at
		FROM refresh_tokens
		WHERE jti = $1
	`, jti)

	var record token.RefreshRecord
	err := row.Scan(&record.JTI, &record.Subject, &record.Device, &record.Token, &record.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_NOT_FOUND").
			With("jti", jti).
			Wrap(token.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REFRESH_LOOKUP_FAILED").
			With("operation", "get refresh_token by jti").
			With("jti", jti).
			Wrap(err)
	}
	return &record, nil
}

// DeleteByJTI removes a record by jti. Returns false if no record existed.
func (r *RefreshTokenRepository) DeleteByJTI(ctx context.Context, jti string) (bool, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM refresh_tokens WHERE jti = $1
	`, jti)
	if err != nil {
		return false, oops.Code("REFRESH_DELETE_FAILED").
			With("operation", "delete refresh_token by jti").
			With("jti", jti).
			Wrap(err)
	}
	return result.RowsAffected() > 0, nil
}

// DeleteAllForSubject removes every record for an account.
func (r *RefreshTokenRepository) DeleteAllForSubject(ctx context.Context, subject int64) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM refresh_tokens WHERE subject = $1
	`, subject)
	if err != nil {
		return 0, oops.Code("REFRESH_DELETE_ALL_FAILED").
			With("operation", "delete refresh_tokens by subject").
			With("subject", subject).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes records past their expiry and returns the count.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at <= $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("REFRESH_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired refresh_tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ token.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
