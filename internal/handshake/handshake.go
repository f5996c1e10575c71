// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

// Package handshake implements the device-linking flow that lets a game
// client without browser cookies obtain a session through a logged-in
// browser. The game client opens the browser on the tracking URL with a
// random state token and polls for the outcome while the browser user
// approves or denies the link.
package handshake

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// Status is the decision state of a tracked handshake.
type Status string

const (
	// StatusNone marks a handshake awaiting the browser user's decision.
	StatusNone Status = "none"
	// StatusError marks a handshake poisoned by a malformed decision.
	StatusError Status = "error"
	// StatusAccess marks an approved handshake.
	StatusAccess Status = "access"
	// StatusDenied marks a rejected handshake.
	StatusDenied Status = "denied"
)

// CookieStateToken carries the tracked state token in the browser.
const CookieStateToken = "state"

const (
	// pendingTTL bounds how long an undecided handshake survives between
	// polls. Each pending poll renews it.
	pendingTTL = 180 * time.Second
	// decidedTTL bounds how long a decision waits for the game client to
	// collect it.
	decidedTTL = 300 * time.Second
	// sessionTTL bounds how long a granted session token can be exchanged
	// by a game server.
	sessionTTL = 180 * time.Second
)

// stateTokenPattern matches the client-generated state token: 64 lowercase
// hex characters.
var stateTokenPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Sentinel outcomes of the polling and resolution operations. The serving
// layer maps these onto HTTP statuses.
var (
	ErrInvalidStateToken = errors.New("invalid state token")
	ErrPending           = errors.New("handshake pending")
	ErrDenied            = errors.New("handshake denied")
	ErrPoisoned          = errors.New("handshake poisoned")
	ErrExpired           = errors.New("handshake expired")
	ErrNoTracking        = errors.New("no tracked handshake")
	ErrAlreadyResolved   = errors.New("handshake already resolved")
	ErrInvalidDecision   = errors.New("invalid handshake decision")
	ErrSessionExpired    = errors.New("session token expired")
)

// Profile is the subset of account data handed to a game client on a
// successful link.
type Profile struct {
	DisplayName string
	Avatar      string
}

// ProfileSource resolves the profile of an account by id.
type ProfileSource interface {
	ProfileOf(ctx context.Context, subject int64) (*Profile, error)
}

// GameSession is the payload a polling game client receives once the
// browser user approves the link. Field names are fixed by deployed game
// clients.
type GameSession struct {
	Token         string `json:"token"`
	APIID         int64  `json:"masterApiId"`
	Username      string `json:"discordUsername,omitempty"`
	Discriminator string `json:"discordDiscriminator,omitempty"`
	Avatar        string `json:"discordAvatar,omitempty"`
}
