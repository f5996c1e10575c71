// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package gameserver

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// LinkConsumer exchanges a handshake session token for the account it was
// granted to. Implemented by the handshake service.
type LinkConsumer interface {
	ConsumeSession(ctx context.Context, sessionToken string) (int64, error)
}

// Service provides server registration and game session operations.
type Service struct {
	servers  Repository
	sessions SessionRepository
	links    LinkConsumer
	now      func() time.Time
}

// NewService creates a Service.
func NewService(servers Repository, sessions SessionRepository, links LinkConsumer) *Service {
	return &Service{
		servers:  servers,
		sessions: sessions,
		links:    links,
		now:      time.Now,
	}
}

// Create registers a new server for owner and returns it with its
// assigned UUID.
func (s *Service) Create(ctx context.Context, owner int64, in CreateInput) (*Server, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	gamemode := in.Gamemode
	if gamemode == "" {
		gamemode = GamemodeNone
	}

	server := &Server{
		UUID:        uuid.New(),
		OwnerID:     owner,
		DisplayName: in.DisplayName,
		Description: in.Description,
		Host:        in.Host,
		Port:        in.Port,
		Gamemode:    gamemode,
		CreatedAt:   s.now(),
	}
	if err := s.servers.Create(ctx, server); err != nil {
		return nil, oops.Code("SERVER_CREATE_FAILED").
			With("owner", owner).
			Wrap(err)
	}

	slog.Info("server registered", "server", server.UUID, "owner", owner)
	return server, nil
}

// Get retrieves a server registration.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Server, error) {
	return s.servers.GetByUUID(ctx, id)
}

// ListByOwner retrieves every server owned by an account.
func (s *Service) ListByOwner(ctx context.Context, owner int64) ([]*Server, error) {
	return s.servers.ListByOwner(ctx, owner)
}

// CreateSession exchanges a handshake session token for a durable game
// session on the given server. The handshake token is consumed; the
// returned session token is what the game server presents afterwards to
// identify the player.
func (s *Service) CreateSession(ctx context.Context, serverID uuid.UUID, linkToken string, playerIP netip.Addr) (*Session, error) {
	if _, err := s.servers.GetByUUID(ctx, serverID); err != nil {
		return nil, err
	}

	userID, err := s.links.ConsumeSession(ctx, linkToken)
	if err != nil {
		return nil, err
	}

	token, err := newGameSessionToken()
	if err != nil {
		return nil, oops.Code("SERVER_SESSION_FAILED").
			With("operation", "mint session token").
			Wrap(err)
	}

	session := &Session{
		ID:         ulid.Make().String(),
		UserID:     userID,
		ServerUUID: serverID,
		Token:      token,
		RegIP:      playerIP,
		CreatedAt:  s.now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, oops.Code("SERVER_SESSION_FAILED").
			With("operation", "persist session").
			With("server", serverID).
			Wrap(err)
	}

	slog.Debug("game session created", "server", serverID, "user", userID)
	return session, nil
}

// SessionUser resolves the player behind a game session token.
func (s *Service) SessionUser(ctx context.Context, token string) (int64, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return 0, err
	}
	return session.UserID, nil
}

// newGameSessionToken mints a URL-safe random token.
func newGameSessionToken() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}
