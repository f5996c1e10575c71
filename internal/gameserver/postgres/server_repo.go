// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

// Package postgres implements the gameserver package's persistence
// interfaces using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"net/netip"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/Cazexotono/MasterApi/internal/gameserver"
)

// db abstracts query execution so repositories work against both
// *pgxpool.Pool and pgxmock pools in tests.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ServerRepository implements gameserver.Repository using PostgreSQL.
type ServerRepository struct {
	db db
}

// NewServerRepository creates a new ServerRepository.
func NewServerRepository(db db) *ServerRepository {
	return &ServerRepository{db: db}
}

const serverColumns = `uuid, owner_user_id, display_name, description, host, port,
       icon, locale, gamemode, game_version, visible, created_at`

// Create stores a new server registration.
func (r *ServerRepository) Create(ctx context.Context, server *gameserver.Server) error {
	var host *string
	if server.Host.IsValid() {
		s := server.Host.String()
		host = &s
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO game_servers (
			uuid, owner_user_id, display_name, description, host, port,
			icon, locale, gamemode, game_version, visible, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		server.UUID,
		server.OwnerID,
		server.DisplayName,
		nullable(server.Description),
		host,
		server.Port,
		nullable(server.Icon),
		nullable(server.Locale),
		string(server.Gamemode),
		nullable(server.GameVersion),
		server.Visible,
		server.CreatedAt,
	)
	if err != nil {
		return oops.Code("SERVER_CREATE_FAILED").
			With("operation", "insert server").
			With("server", server.UUID).
			Wrap(err)
	}
	return nil
}

// GetByUUID retrieves a server.
func (r *ServerRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*gameserver.Server, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+serverColumns+`
		FROM game_servers
		WHERE uuid = $1
	`, id)

	server, err := scanServer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gameserver.ErrServerNotFound
	}
	if err != nil {
		return nil, oops.Code("SERVER_LOOKUP_FAILED").
			With("server", id).
			Wrap(err)
	}
	return server, nil
}

// ListByOwner retrieves every server owned by an account.
func (r *ServerRepository) ListByOwner(ctx context.Context, owner int64) ([]*gameserver.Server, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+serverColumns+`
		FROM game_servers
		WHERE owner_user_id = $1
		ORDER BY created_at
	`, owner)
	if err != nil {
		return nil, oops.Code("SERVER_LOOKUP_FAILED").
			With("owner", owner).
			Wrap(err)
	}
	defer rows.Close()

	var servers []*gameserver.Server
	for rows.Next() {
		server, err := scanServer(rows)
		if err != nil {
			return nil, oops.Code("SERVER_LOOKUP_FAILED").
				With("operation", "scan server").
				Wrap(err)
		}
		servers = append(servers, server)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SERVER_LOOKUP_FAILED").
			With("operation", "iterate servers").
			Wrap(err)
	}
	return servers, nil
}

func scanServer(row pgx.Row) (*gameserver.Server, error) {
	var (
		server              gameserver.Server
		descr, host, icon   *string
		locale, gameVersion *string
		gamemode            string
	)
	err := row.Scan(
		&server.UUID, &server.OwnerID, &server.DisplayName, &descr, &host, &server.Port,
		&icon, &locale, &gamemode, &gameVersion, &server.Visible, &server.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	server.Description = deref(descr)
	server.Icon = deref(icon)
	server.Locale = deref(locale)
	server.GameVersion = deref(gameVersion)
	server.Gamemode = gameserver.Gamemode(gamemode)
	if host != nil {
		server.Host, _ = netip.ParseAddr(*host)
	}
	return &server, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Compile-time interface check.
var _ gameserver.Repository = (*ServerRepository)(nil)
