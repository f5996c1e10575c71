// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package postgres

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cazexotono/MasterApi/internal/gameserver"
)

var sessionColumns = []string{
	"session_id", "user_id", "server_uuid", "session_token", "reg_ip", "created_at",
}

func TestSessionRepository_Create(t *testing.T) {
	createdAt := time.Date(2026, 5, 12, 14, 0, 0, 0, time.UTC)
	session := &gameserver.Session{
		ID:         "01JXAMPLE0000000000000000",
		UserID:     42,
		ServerUUID: uuid.MustParse("9f2c1b34-0000-4000-8000-000000000001"),
		Token:      "opaque-session-token",
		RegIP:      netip.MustParseAddr("203.0.113.30"),
		CreatedAt:  createdAt,
	}

	t.Run("successful insert", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO game_sessions`).
			WithArgs(session.ID, session.UserID, session.ServerUUID,
				session.Token, "203.0.113.30", createdAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewSessionRepository(mock)
		require.NoError(t, repo.Create(context.Background(), session))

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO game_sessions`).
			WithArgs(session.ID, session.UserID, session.ServerUUID,
				session.Token, "203.0.113.30", createdAt).
			WillReturnError(errors.New("connection refused"))

		repo := NewSessionRepository(mock)
		require.Error(t, repo.Create(context.Background(), session))

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestSessionRepository_GetByToken(t *testing.T) {
	serverID := uuid.MustParse("9f2c1b34-0000-4000-8000-000000000001")
	createdAt := time.Date(2026, 5, 12, 14, 0, 0, 0, time.UTC)

	t.Run("session found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		regIP := "203.0.113.30"
		rows := pgxmock.NewRows(sessionColumns).AddRow(
			"01JXAMPLE0000000000000000", int64(42), serverID,
			"opaque-session-token", &regIP, createdAt,
		)
		mock.ExpectQuery(`SELECT session_id, user_id, server_uuid`).
			WithArgs("opaque-session-token").
			WillReturnRows(rows)

		repo := NewSessionRepository(mock)
		session, err := repo.GetByToken(context.Background(), "opaque-session-token")
		require.NoError(t, err)
		assert.Equal(t, int64(42), session.UserID)
		assert.Equal(t, serverID, session.ServerUUID)
		assert.Equal(t, netip.MustParseAddr("203.0.113.30"), session.RegIP)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("session not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT session_id, user_id, server_uuid`).
			WithArgs("unknown-token").
			WillReturnRows(pgxmock.NewRows(sessionColumns))

		repo := NewSessionRepository(mock)
		_, err = repo.GetByToken(context.Background(), "unknown-token")
		assert.ErrorIs(t, err, gameserver.ErrSessionNotFound)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}
