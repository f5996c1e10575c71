// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package postgres

import (
	"context"
	"errors"
	"net/netip"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/Cazexotono/MasterApi/internal/gameserver"
)

// SessionRepository implements gameserver.SessionRepository using
// PostgreSQL.
type SessionRepository struct {
	db db
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db db) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new game session.
func (r *SessionRepository) Create(ctx context.Context, session *gameserver.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO game_sessions (
			session_id, user_id, server_uuid, session_token, reg_ip, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`,
		session.ID,
		session.UserID,
		session.ServerUUID,
		session.Token,
		session.RegIP.String(),
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert game session").
			With("server", session.ServerUUID).
			Wrap(err)
	}
	return nil
}

// GetByToken retrieves a session by its token.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*gameserver.Session, error) {
	row := r.db.QueryRow(ctx, `
		SELECT session_id, user_id, server_uuid, session_token, reg_ip, created_at
		FROM game_sessions
		WHERE session_token = $1
	`, token)

	var (
		session gameserver.Session
		regIP   *string
	)
	err := row.Scan(
		&session.ID, &session.UserID, &session.ServerUUID,
		&session.Token, &regIP, &session.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gameserver.ErrSessionNotFound
	}
	if err != nil {
		return nil, oops.Code("SESSION_LOOKUP_FAILED").
			With("operation", "get game session by token").
			Wrap(err)
	}
	if regIP != nil {
		session.RegIP, _ = netip.ParseAddr(*regIP)
	}
	return &session, nil
}

// Compile-time interface check.
var _ gameserver.SessionRepository = (*SessionRepository)(nil)
