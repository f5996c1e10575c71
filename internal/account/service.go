// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/samber/oops"

	"github.com/Cazexotono/MasterApi/internal/handshake"
	"github.com/Cazexotono/MasterApi/internal/token"
)

// Service provides account operations.
type Service struct {
	users  Repository
	hasher PasswordHasher
	now    func() time.Time
}

// NewService creates a Service.
func NewService(users Repository, hasher PasswordHasher) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		now:    time.Now,
	}
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates a new account. The display name defaults to the local
// part of the email when empty.
func (s *Service) Register(ctx context.Context, email, password, displayName string, regIP netip.Addr) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = localPart(email)
	}
	if err := ValidateDisplayName(displayName); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user := &User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		RegIP:        regIP,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	slog.Debug("account registered", "user_id", user.ID)
	return user, nil
}

// Login authenticates an account by email and password.
// Uses constant-time operations to prevent timing-based email enumeration.
func (s *Service) Login(ctx context.Context, email, password string, ip netip.Addr) (*User, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			// Use dummy hash - still perform verification to maintain constant time
			targetHash = dummyPasswordHash
			userExists = false
		} else {
			return nil, oops.Code("ACCOUNT_LOGIN_FAILED").
				With("operation", "get account by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, ErrInvalidCredentials
		}
		return nil, oops.Code("ACCOUNT_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	// If the account doesn't exist OR the password is wrong, return the
	// same error.
	if !userExists || !valid {
		return nil, ErrInvalidCredentials
	}

	// Best effort, login succeeds regardless
	_ = s.users.RecordLogin(ctx, user.ID, ip, s.now()) //nolint:errcheck

	slog.Debug("account login", "user_id", user.ID)
	return user, nil
}

// Get retrieves an account by id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile applies a partial profile update after validating the
// fields that are present.
func (s *Service) UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) error {
	if update.DisplayName != nil {
		if err := ValidateDisplayName(*update.DisplayName); err != nil {
			return err
		}
	}
	return s.users.UpdateProfile(ctx, id, update)
}

// DisplayNameOf resolves the display name of an account. Satisfies the
// token manager's identity lookup.
func (s *Service) DisplayNameOf(ctx context.Context, subject int64) (string, error) {
	user, err := s.users.GetByID(ctx, subject)
	if err != nil {
		return "", err
	}
	return user.DisplayName, nil
}

// ProfileOf resolves the public profile handed to linked game clients.
func (s *Service) ProfileOf(ctx context.Context, subject int64) (*handshake.Profile, error) {
	user, err := s.users.GetByID(ctx, subject)
	if err != nil {
		return nil, err
	}
	return &handshake.Profile{
		DisplayName: user.DisplayName,
		Avatar:      user.Avatar,
	}, nil
}

// localPart returns everything before the @ of an already-validated email.
func localPart(email string) string {
	for i, r := range email {
		if r == '@' {
			return email[:i]
		}
	}
	return email
}

// Compile-time interface checks.
var (
	_ handshake.ProfileSource = (*Service)(nil)
	_ token.IdentityResolver  = (*Service)(nil)
)
