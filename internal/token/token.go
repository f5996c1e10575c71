// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

// Package token issues, validates, and rotates the paired refresh/access
// JWT credentials that authenticate every request against the master API.
package token

import (
	"crypto/rsa"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token type discriminator carried in the "type" claim.
const (
	TypeRefresh = "refresh"
	TypeAccess  = "access"
)

// Policy controls token lifetimes and the early-renewal window. The values
// are policy, not structure: deployments may override them, the defaults
// match what existing game clients expect.
type Policy struct {
	// RefreshTokenTTL is the server-side lifetime of a refresh token.
	RefreshTokenTTL time.Duration

	// AccessTokenTTL is the lifetime of an access token.
	AccessTokenTTL time.Duration

	// ReissueFraction is the trailing fraction of a token's lifetime in
	// which it is renewed on use instead of being served as-is.
	ReissueFraction float64

	// Leeway absorbs clock skew during time-based claim validation.
	Leeway time.Duration
}

// DefaultPolicy returns the stock policy: 14 day refresh tokens, 15 minute
// access tokens, renewal inside the last quarter of either lifetime, and
// 5 seconds of clock-skew leeway.
func DefaultPolicy() Policy {
	return Policy{
		RefreshTokenTTL: 14 * 24 * time.Hour,
		AccessTokenTTL:  15 * time.Minute,
		ReissueFraction: 0.25,
		Leeway:          5 * time.Second,
	}
}

// RefreshClaims is the payload of a long-lived refresh token. The audience
// is the device identifier the token is bound to.
type RefreshClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// AccessClaims is the payload of a short-lived access token. It shares the
// jti of the refresh token it was derived from and additionally carries the
// account's display name.
type AccessClaims struct {
	TokenType   string `json:"type"`
	DisplayName string `json:"uname"`
	jwt.RegisteredClaims
}

// SubjectID returns the numeric account id from the sub claim.
func (c *AccessClaims) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, oops.Code("TOKEN_BAD_SUBJECT").With("sub", c.Subject).Wrap(err)
	}
	return id, nil
}

// Signer mints and verifies RS256-signed token pairs.
type Signer struct {
	issuer string
	key    *rsa.PrivateKey
	policy Policy
	now    func() time.Time
}

// NewSigner creates a Signer for the given issuer and RSA keypair.
func NewSigner(issuer string, key *rsa.PrivateKey, policy Policy) *Signer {
	return &Signer{
		issuer: issuer,
		key:    key,
		policy: policy,
		now:    time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *Signer) SetClock(now func() time.Time) { s.now = now }

// MintRefresh creates a refresh token for subject bound to device, with a
// fresh ULID jti and iat = nbf = now.
func (s *Signer) MintRefresh(subject int64, device string) (string, *RefreshClaims, error) {
	now := s.now()
	claims := &RefreshClaims{
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   strconv.FormatInt(subject, 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{device},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.policy.RefreshTokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", nil, oops.Code("TOKEN_SIGN_FAILED").With("operation", "sign refresh token").Wrap(err)
	}
	return signed, claims, nil
}

// MintAccess derives an access token from a refresh token's claims. The
// jti, subject, issuer, and audience carry over unchanged.
func (s *Signer) MintAccess(refresh *RefreshClaims, displayName string) (string, *AccessClaims, error) {
	now := s.now()
	claims := &AccessClaims{
		TokenType:   TypeAccess,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        refresh.ID,
			Subject:   refresh.Subject,
			Issuer:    refresh.Issuer,
			Audience:  refresh.Audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.policy.AccessTokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", nil, oops.Code("TOKEN_SIGN_FAILED").With("operation", "sign access token").Wrap(err)
	}
	return signed, claims, nil
}

// ParseRefresh verifies signature, issuer, device audience, expiry, and
// not-before of a refresh token and returns its claims.
func (s *Signer) ParseRefresh(tokenString, device string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(tokenString, device, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeRefresh {
		return nil, oops.Code("TOKEN_TYPE_MISMATCH").
			With("want", TypeRefresh).
			With("got", claims.TokenType).
			Errorf("unexpected token type")
	}
	return claims, nil
}

// ParseAccess verifies an access token the same way ParseRefresh does.
func (s *Signer) ParseAccess(tokenString, device string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(tokenString, device, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeAccess {
		return nil, oops.Code("TOKEN_TYPE_MISMATCH").
			With("want", TypeAccess).
			With("got", claims.TokenType).
			Errorf("unexpected token type")
	}
	return claims, nil
}

// parse runs the shared verification pipeline into claims.
func (s *Signer) parse(tokenString, device string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return &s.key.PublicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(device),
		jwt.WithLeeway(s.policy.Leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		return oops.Code("TOKEN_VERIFY_FAILED").Wrap(err)
	}
	return nil
}

// NeedsReissue reports whether a token has entered the trailing
// ReissueFraction of its lifetime: exp - (exp-iat)*fraction < now.
func (s *Signer) NeedsReissue(claims jwt.RegisteredClaims) bool {
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		// Tokens without lifetime bookends never pass verification, but
		// fail toward renewal rather than acceptance.
		return true
	}
	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	buffer := time.Duration(float64(lifetime) * s.policy.ReissueFraction)
	return s.now().After(claims.ExpiresAt.Add(-buffer))
}
