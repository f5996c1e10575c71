// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

// Package account manages user accounts: registration, credential checks,
// and the public profile other modules read from.
package account

import (
	"context"
	"errors"
	"net/mail"
	"net/netip"
	"time"

	"github.com/samber/oops"
)

// Display name validation constraints.
const (
	MinDisplayNameLength = 3
	MaxDisplayNameLength = 64
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// Typed failures the serving layer maps onto HTTP statuses. Plain sentinels
// so errors.Is matches them and nothing else.
var (
	ErrNotFound           = errors.New("account not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// User is a registered account with its public profile.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Verified     bool

	DisplayName string
	Avatar      string
	Description string
	Locale      string

	RegIP     netip.Addr
	LastIP    netip.Addr
	LastLogin time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileUpdate carries the user-editable profile fields. Nil fields are
// left unchanged.
type ProfileUpdate struct {
	DisplayName *string
	Avatar      *string
	Description *string
	Locale      *string
}

// Repository manages account persistence.
type Repository interface {
	// Create stores a new account and assigns its ID. Returns
	// ErrEmailTaken if the email is already registered.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves an account by id. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByEmail retrieves an account by email. Returns ErrNotFound if
	// absent.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdateProfile applies a partial profile update.
	UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) error

	// RecordLogin stores the time and source address of a login.
	RecordLogin(ctx context.Context, id int64, ip netip.Addr, at time.Time) error
}

// ValidateEmail checks that email is a plain RFC 5322 address.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("invalid email address")
	}
	return nil
}

// ValidateDisplayName checks display name length bounds.
func ValidateDisplayName(name string) error {
	if len(name) < MinDisplayNameLength {
		return oops.Code("ACCOUNT_INVALID_DISPLAY_NAME").
			With("min", MinDisplayNameLength).
			Errorf("display name must be at least %d characters", MinDisplayNameLength)
	}
	if len(name) > MaxDisplayNameLength {
		return oops.Code("ACCOUNT_INVALID_DISPLAY_NAME").
			With("max", MaxDisplayNameLength).
			Errorf("display name must be at most %d characters", MaxDisplayNameLength)
	}
	return nil
}

// ValidatePassword checks password length bounds.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("ACCOUNT_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
