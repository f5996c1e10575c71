// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package token

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/Cazexotono/MasterApi/internal/observability"
)

// Manager coordinates the token lifecycle: issuance, per-request
// validation with rotation-on-read, and revocation. It keeps no in-process
// state; all coordination happens through the refresh record store.
type Manager struct {
	signer   *Signer
	records  RefreshTokenRepository
	identity IdentityResolver
}

// NewManager creates a Manager.
func NewManager(signer *Signer, records RefreshTokenRepository, identity IdentityResolver) *Manager {
	return &Manager{
		signer:   signer,
		records:  records,
		identity: identity,
	}
}

// IssueRefresh mints a refresh token for subject bound to device, upserts
// its record, and stages the refresh cookie. The cookie is persistent only
// when remember is set; the token itself is always full-lived server-side.
func (m *Manager) IssueRefresh(ctx context.Context, jar CookieJar, subject int64, device string, remember bool) (*RefreshClaims, error) {
	signed, claims, err := m.signer.MintRefresh(subject, device)
	if err != nil {
		return nil, err
	}

	record := &RefreshRecord{
		JTI:       claims.ID,
		Subject:   subject,
		Device:    device,
		Token:     signed,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := m.records.Upsert(ctx, record); err != nil {
		return nil, oops.Code("TOKEN_RECORD_UPSERT_FAILED").
			With("jti", claims.ID).
			Wrap(err)
	}

	var expires time.Time
	if remember {
		expires = claims.ExpiresAt.Time
	}
	jar.Set(CookieRefreshToken, signed, expires)

	return claims, nil
}

// IssueAccessFromRefresh mints an access token from verified refresh
// claims and stages the access cookie.
func (m *Manager) IssueAccessFromRefresh(jar CookieJar, refresh *RefreshClaims, displayName string) (*AccessClaims, error) {
	signed, claims, err := m.signer.MintAccess(refresh, displayName)
	if err != nil {
		return nil, err
	}
	jar.Set(CookieAccessToken, signed, claims.ExpiresAt.Time)
	return claims, nil
}

// IssueBoth mints a fresh refresh+access pair. Used on login, signup, and
// full rotation.
func (m *Manager) IssueBoth(ctx context.Context, jar CookieJar, subject int64, displayName, device string, remember bool) (*AccessClaims, error) {
	refresh, err := m.IssueRefresh(ctx, jar, subject, device, remember)
	if err != nil {
		return nil, err
	}
	return m.IssueAccessFromRefresh(jar, refresh, displayName)
}

// Validate is the per-request authentication check. It returns the access
// claims for an authenticated request, or (nil, nil) for an unauthenticated
// one. Every verification failure — bad signature, unknown or superseded
// refresh token, jti mismatch — degrades to unauthenticated and clears the
// token cookies; only store failures surface as errors.
//
// A refresh token inside its trailing renewal window triggers a full
// rotation (new jti, old record replaced). An access token inside its own
// window is reissued alone.
func (m *Manager) Validate(ctx context.Context, jar CookieJar, device string) (*AccessClaims, error) {
	refreshToken, _ := jar.Get(CookieRefreshToken)
	accessToken, _ := jar.Get(CookieAccessToken)

	if refreshToken == "" && accessToken == "" {
		return nil, nil
	}
	if refreshToken == "" {
		// An access token is never trusted without a live refresh token.
		return m.reject(jar, "access token without refresh token", nil)
	}

	refreshClaims, err := m.signer.ParseRefresh(refreshToken, device)
	if err != nil {
		return m.reject(jar, "refresh token verification failed", err)
	}

	record, err := m.records.FindByJTI(ctx, refreshClaims.ID)
	if errors.Is(err, ErrNotFound) {
		// Revoked or never issued.
		return m.reject(jar, "refresh record not found", nil)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_RECORD_LOOKUP_FAILED").
			With("jti", refreshClaims.ID).
			Wrap(err)
	}

	if subtle.ConstantTimeCompare([]byte(record.Token), []byte(refreshToken)) != 1 {
		// Same jti, different signed value: a superseded token is being
		// replayed after rotation.
		return m.reject(jar, "refresh token superseded", nil)
	}

	displayName, err := m.identity.DisplayNameOf(ctx, record.Subject)
	if err != nil {
		return nil, oops.Code("TOKEN_IDENTITY_LOOKUP_FAILED").
			With("subject", record.Subject).
			Wrap(err)
	}

	if m.signer.NeedsReissue(refreshClaims.RegisteredClaims) {
		observability.RecordTokenRotation("refresh")
		return m.IssueBoth(ctx, jar, record.Subject, displayName, device, true)
	}

	if accessToken == "" {
		return m.IssueAccessFromRefresh(jar, refreshClaims, displayName)
	}

	accessClaims, err := m.signer.ParseAccess(accessToken, device)
	if err != nil {
		return m.reject(jar, "access token verification failed", err)
	}
	if accessClaims.ID != refreshClaims.ID {
		// The pair was issued together; disagreeing jtis mean the client
		// is mixing tokens from different pairs.
		return m.reject(jar, "access/refresh jti mismatch", nil)
	}

	if m.signer.NeedsReissue(accessClaims.RegisteredClaims) {
		observability.RecordTokenRotation("access")
		return m.IssueAccessFromRefresh(jar, refreshClaims, displayName)
	}

	return accessClaims, nil
}

// Revoke deletes the refresh record for jti and clears both token cookies.
// Revoking an already-revoked jti is a no-op.
func (m *Manager) Revoke(ctx context.Context, jar CookieJar, jti string) error {
	if _, err := m.records.DeleteByJTI(ctx, jti); err != nil {
		return oops.Code("TOKEN_REVOKE_FAILED").With("jti", jti).Wrap(err)
	}
	ClearCookies(jar)
	return nil
}

// RevokeAllForSubject deletes every refresh record for an account.
// Existing access tokens die with their records.
func (m *Manager) RevokeAllForSubject(ctx context.Context, subject int64) (int64, error) {
	count, err := m.records.DeleteAllForSubject(ctx, subject)
	if err != nil {
		return 0, oops.Code("TOKEN_REVOKE_ALL_FAILED").With("subject", subject).Wrap(err)
	}
	return count, nil
}

// ClearCookies stages removal of both token cookies.
func ClearCookies(jar CookieJar) {
	jar.Clear(CookieAccessToken)
	jar.Clear(CookieRefreshToken)
}

// reject degrades a verification failure to "unauthenticated": cookies are
// cleared and no error surfaces to the caller.
func (m *Manager) reject(jar CookieJar, reason string, cause error) (*AccessClaims, error) {
	if cause != nil {
		slog.Debug("token validation rejected", "reason", reason, "error", cause)
	} else {
		slog.Debug("token validation rejected", "reason", reason)
	}
	ClearCookies(jar)
	return nil, nil
}
