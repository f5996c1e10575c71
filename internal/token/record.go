// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package token

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// RefreshRecord is the server-side registration of a refresh token. One
// record exists per (subject, device) pair; issuing a new refresh token for
// the same pair replaces the previous record, which is what invalidates the
// superseded token.
type RefreshRecord struct {
	JTI       string
	Subject   int64
	Device    string
	Token     string // the full signed refresh token as handed to the client
	ExpiresAt time.Time
}

// RefreshTokenRepository persists refresh records. It is the revocation
// authority: an access token is only as valid as the refresh record sharing
// its jti.
type RefreshTokenRepository interface {
	// Upsert inserts the record, replacing any existing record for the
	// same (subject, device) pair.
	Upsert(ctx context.Context, record *RefreshRecord) error

	// FindByJTI retrieves a record by jti, or ErrNotFound.
	FindByJTI(ctx context.Context, jti string) (*RefreshRecord, error)

	// DeleteByJTI removes a record by jti. Returns false if no record
	// existed.
	DeleteByJTI(ctx context.Context, jti string) (bool, error)

	// DeleteAllForSubject removes every record for an account and
	// returns the count. Used for forced global logout.
	DeleteAllForSubject(ctx context.Context, subject int64) (int64, error)

	// DeleteExpired removes records past their expiry and returns the
	// count.
	DeleteExpired(ctx context.Context) (int64, error)
}

// IdentityResolver maps an account id to its public display name.
type IdentityResolver interface {
	// DisplayNameOf returns the display name for subject, or an error
	// if the account is unknown.
	DisplayNameOf(ctx context.Context, subject int64) (string, error)
}
