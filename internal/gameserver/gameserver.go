// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

// Package gameserver manages durable game server registrations and the
// per-player game sessions created when a linked client joins a server.
// Live presence is the registry package's concern; this package is the
// system of record a server must exist in before it may go live.
package gameserver

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Gamemode classifies what kind of play a server offers.
type Gamemode string

// Known gamemodes. The zero value is GamemodeNone.
const (
	GamemodeNone      Gamemode = "none"
	GamemodeSandbox   Gamemode = "sandbox"
	GamemodeRoleplay  Gamemode = "roleplay"
	GamemodeAdventure Gamemode = "adventure"
	GamemodeMinigames Gamemode = "minigames"
	GamemodePvP       Gamemode = "pvp"
	GamemodePvE       Gamemode = "pve"
	GamemodeMMO       Gamemode = "mmo"
)

// IsValid reports whether g is a known gamemode.
func (g Gamemode) IsValid() bool {
	switch g {
	case GamemodeNone, GamemodeSandbox, GamemodeRoleplay, GamemodeAdventure,
		GamemodeMinigames, GamemodePvP, GamemodePvE, GamemodeMMO:
		return true
	}
	return false
}

// Display name and description length bounds.
const (
	MaxDisplayNameLength = 64
	MaxDescriptionLength = 2048
)

// Typed failures the serving layer maps onto HTTP statuses. Plain sentinels
// so errors.Is matches them and nothing else.
var (
	ErrServerNotFound  = errors.New("server not found")
	ErrSessionNotFound = errors.New("game session not found")
	ErrNoHost          = errors.New("server has no registered host")
)

// Server is a durable game server registration.
type Server struct {
	UUID    uuid.UUID
	OwnerID int64

	DisplayName string
	Description string
	Host        netip.Addr
	Port        int
	Icon        string
	Locale      string
	Gamemode    Gamemode
	GameVersion string
	Visible     bool

	CreatedAt time.Time
}

// HasHost reports whether the server registered a reachable address.
// Heartbeats from hostless servers are refused.
func (s *Server) HasHost() bool {
	return s.Host.IsValid() && !s.Host.IsUnspecified()
}

// Session is one player's authenticated presence on one server.
type Session struct {
	ID         string
	UserID     int64
	ServerUUID uuid.UUID
	Token      string
	RegIP      netip.Addr
	CreatedAt  time.Time
}

// Repository manages server persistence.
type Repository interface {
	// Create stores a new server registration.
	Create(ctx context.Context, server *Server) error

	// GetByUUID retrieves a server. Returns ErrServerNotFound if absent.
	GetByUUID(ctx context.Context, id uuid.UUID) (*Server, error)

	// ListByOwner retrieves every server owned by an account.
	ListByOwner(ctx context.Context, owner int64) ([]*Server, error)
}

// SessionRepository manages game session persistence.
type SessionRepository interface {
	// Create stores a new game session.
	Create(ctx context.Context, session *Session) error

	// GetByToken retrieves a session by its token. Returns
	// ErrSessionNotFound if absent.
	GetByToken(ctx context.Context, token string) (*Session, error)
}

// CreateInput carries the owner-supplied fields of a new registration.
type CreateInput struct {
	DisplayName string
	Description string
	Host        netip.Addr
	Port        int
	Gamemode    Gamemode
}

// Validate checks the input's field constraints.
func (in *CreateInput) Validate() error {
	if in.DisplayName == "" || len(in.DisplayName) > MaxDisplayNameLength {
		return oops.Code("SERVER_INVALID_INPUT").
			With("max", MaxDisplayNameLength).
			Errorf("display name must be 1-%d characters", MaxDisplayNameLength)
	}
	if len(in.Description) > MaxDescriptionLength {
		return oops.Code("SERVER_INVALID_INPUT").
			With("max", MaxDescriptionLength).
			Errorf("description must be at most %d characters", MaxDescriptionLength)
	}
	if in.Port < 0 || in.Port > 65535 {
		return oops.Code("SERVER_INVALID_INPUT").Errorf("port out of range")
	}
	if in.Gamemode != "" && !in.Gamemode.IsValid() {
		return oops.Code("SERVER_INVALID_INPUT").
			With("gamemode", string(in.Gamemode)).
			Errorf("unknown gamemode")
	}
	return nil
}
