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

var serverTestColumns = []string{
	"uuid", "owner_user_id", "display_name", "description", "host", "port",
	"icon", "locale", "gamemode", "game_version", "visible", "created_at",
}

func TestServerRepository_Create(t *testing.T) {
	createdAt := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	server := &gameserver.Server{
		UUID:        uuid.MustParse("9f2c1b34-0000-4000-8000-000000000001"),
		OwnerID:     42,
		DisplayName: "arena",
		Host:        netip.MustParseAddr("203.0.113.20"),
		Port:        28015,
		Gamemode:    gameserver.GamemodePvP,
		CreatedAt:   createdAt,
	}

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   bool
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO game_servers`).
					WithArgs(
						server.UUID, int64(42), "arena", pgxmock.AnyArg(), pgxmock.AnyArg(), 28015,
						pgxmock.AnyArg(), pgxmock.AnyArg(), "pvp", pgxmock.AnyArg(), false, createdAt,
					).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO game_servers`).
					WithArgs(
						server.UUID, int64(42), "arena", pgxmock.AnyArg(), pgxmock.AnyArg(), 28015,
						pgxmock.AnyArg(), pgxmock.AnyArg(), "pvp", pgxmock.AnyArg(), false, createdAt,
					).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewServerRepository(mock)
			err = repo.Create(context.Background(), server)

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestServerRepository_GetByUUID(t *testing.T) {
	id := uuid.MustParse("9f2c1b34-0000-4000-8000-000000000001")
	createdAt := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		setupMock  func(mock pgxmock.PgxPoolIface)
		check      func(t *testing.T, server *gameserver.Server)
		wantErr    bool
		isNotFound bool
	}{
		{
			name: "server found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				host := "203.0.113.20"
				rows := pgxmock.NewRows(serverTestColumns).AddRow(
					id, int64(42), "arena", nil, &host, 28015,
					nil, nil, "pvp", nil, true, createdAt,
				)
				mock.ExpectQuery(`SELECT`).
					WithArgs(id).
					WillReturnRows(rows)
			},
			check: func(t *testing.T, server *gameserver.Server) {
				assert.Equal(t, "arena", server.DisplayName)
				assert.Equal(t, netip.MustParseAddr("203.0.113.20"), server.Host)
				assert.Equal(t, gameserver.GamemodePvP, server.Gamemode)
				assert.True(t, server.Visible)
			},
		},
		{
			name: "hostless server",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(serverTestColumns).AddRow(
					id, int64(42), "lobby", nil, nil, 0,
					nil, nil, "none", nil, false, createdAt,
				)
				mock.ExpectQuery(`SELECT`).
					WithArgs(id).
					WillReturnRows(rows)
			},
			check: func(t *testing.T, server *gameserver.Server) {
				assert.False(t, server.HasHost())
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT`).
					WithArgs(id).
					WillReturnRows(pgxmock.NewRows(serverTestColumns))
			},
			wantErr:    true,
			isNotFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewServerRepository(mock)
			server, err := repo.GetByUUID(context.Background(), id)

			if tt.wantErr {
				require.Error(t, err)
				if tt.isNotFound {
					assert.ErrorIs(t, err, gameserver.ErrServerNotFound)
				}
			} else {
				require.NoError(t, err)
				tt.check(t, server)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestServerRepository_ListByOwner(t *testing.T) {
	createdAt := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

	t.Run("two servers", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		host := "203.0.113.20"
		rows := pgxmock.NewRows(serverTestColumns).
			AddRow(uuid.New(), int64(42), "arena", nil, &host, 28015,
				nil, nil, "pvp", nil, true, createdAt).
			AddRow(uuid.New(), int64(42), "lobby", nil, nil, 0,
				nil, nil, "none", nil, false, createdAt)
		mock.ExpectQuery(`SELECT`).
			WithArgs(int64(42)).
			WillReturnRows(rows)

		repo := NewServerRepository(mock)
		servers, err := repo.ListByOwner(context.Background(), 42)
		require.NoError(t, err)
		require.Len(t, servers, 2)
		assert.Equal(t, "arena", servers[0].DisplayName)
		assert.Equal(t, "lobby", servers[1].DisplayName)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("no servers", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT`).
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows(serverTestColumns))

		repo := NewServerRepository(mock)
		servers, err := repo.ListByOwner(context.Background(), 42)
		require.NoError(t, err)
		assert.Empty(t, servers)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT`).
			WithArgs(int64(42)).
			WillReturnError(errors.New("connection refused"))

		repo := NewServerRepository(mock)
		_, err = repo.ListByOwner(context.Background(), 42)
		require.Error(t, err)

		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}
