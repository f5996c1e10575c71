// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package httpapi

import (
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Cazexotono/MasterApi/internal/gameserver"
	"github.com/Cazexotono/MasterApi/internal/registry"
)

// serverIDOf parses the {uuid} path segment. A second return of false
// means the response has already been written.
func serverIDOf(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("uuid"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid server id")
		return uuid.UUID{}, false
	}
	return id, true
}

type serverSummary struct {
	Name       string `json:"name"`
	Online     int    `json:"online"`
	MaxPlayers int    `json:"maxPlayers"`
}

type directoryResponse struct {
	OnlineServers int                      `json:"online_servers"`
	OnlinePlayers int                      `json:"online_players"`
	Servers       map[string]serverSummary `json:"servers"`
}

func (s *Server) handleServersList(w http.ResponseWriter, r *http.Request) {
	live := s.opts.Live.ListOnline()

	resp := directoryResponse{
		OnlineServers: len(live),
		Servers:       make(map[string]serverSummary, len(live)),
	}
	for id, record := range live {
		resp.OnlinePlayers += record.Online
		resp.Servers[id.String()] = serverSummary{
			Name:       record.DisplayName,
			Online:     record.Online,
			MaxPlayers: record.MaxPlayers,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

type createServerRequest struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
	Gamemode    string `json:"gamemode,omitempty"`
}

func (s *Server) handleServerCreate(w http.ResponseWriter, r *http.Request) {
	claims, _, err := s.authenticate(w, r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	owner, err := claims.SubjectID()
	if err != nil {
		respondServiceError(w, err)
		return
	}

	var req createServerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var host netip.Addr
	if req.Host != "" {
		host, err = netip.ParseAddr(req.Host)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid host address")
			return
		}
	}

	server, err := s.opts.Servers.Create(r.Context(), owner, gameserver.CreateInput{
		DisplayName: req.DisplayName,
		Description: req.Description,
		Host:        host,
		Port:        req.Port,
		Gamemode:    gameserver.Gamemode(req.Gamemode),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"uuid": server.UUID.String()})
}

type serverResponse struct {
	UUID        string    `json:"uuid"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	Host        string    `json:"host,omitempty"`
	Port        int       `json:"port,omitempty"`
	Gamemode    string    `json:"gamemode"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := serverIDOf(w, r)
	if !ok {
		return
	}

	server, err := s.opts.Servers.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := serverResponse{
		UUID:        server.UUID.String(),
		DisplayName: server.DisplayName,
		Description: server.Description,
		Port:        server.Port,
		Gamemode:    string(server.Gamemode),
		CreatedAt:   server.CreatedAt,
	}
	if server.HasHost() {
		resp.Host = server.Host.String()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleServerHeartbeat(w http.ResponseWriter, r *http.Request) {
	id, ok := serverIDOf(w, r)
	if !ok {
		return
	}

	var beat registry.Heartbeat
	if err := decodeJSON(r, &beat); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	server, err := s.opts.Servers.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !server.HasHost() {
		respondServiceError(w, gameserver.ErrNoHost)
		return
	}

	endpoint := registry.Endpoint{
		Host:     server.Host.String(),
		Port:     server.Port,
		Gamemode: string(server.Gamemode),
	}
	if err := s.opts.Heartbeats.Beat(r.Context(), id, endpoint, beat); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleServerOnline(w http.ResponseWriter, r *http.Request) {
	id, ok := serverIDOf(w, r)
	if !ok {
		return
	}

	record, live := s.opts.Live.Get(id)
	if !live {
		respondServiceError(w, registry.ErrServerNotRegistered)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{
		"online":     record.Online,
		"maxPlayers": record.MaxPlayers,
	})
}

type connectResponse struct {
	Key  string `json:"key"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (s *Server) handleServerConnect(w http.ResponseWriter, r *http.Request) {
	id, ok := serverIDOf(w, r)
	if !ok {
		return
	}

	record, live := s.opts.Live.Get(id)
	if !live {
		respondServiceError(w, registry.ErrServerNotRegistered)
		return
	}
	respondJSON(w, http.StatusOK, connectResponse{
		Key:  id.String(),
		Host: record.Host,
		Port: record.Port,
	})
}

func (s *Server) handleServerManifest(w http.ResponseWriter, r *http.Request) {
	id, ok := serverIDOf(w, r)
	if !ok {
		return
	}

	record, live := s.opts.Live.Get(id)
	if !live {
		respondServiceError(w, registry.ErrServerNotRegistered)
		return
	}
	respondJSON(w, http.StatusOK, record.Manifest)
}

// linkTokenOf extracts the handshake session token a game server presents
// when creating a player session. Only the Bearer scheme is accepted.
func linkTokenOf(r *http.Request) string {
	const scheme = "Bearer "
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, scheme) {
		return ""
	}
	return strings.TrimSpace(auth[len(scheme):])
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := serverIDOf(w, r)
	if !ok {
		return
	}

	linkToken := linkTokenOf(r)
	if linkToken == "" {
		respondError(w, http.StatusUnauthorized, "missing link token")
		return
	}

	session, err := s.opts.Servers.CreateSession(r.Context(), id, linkToken, clientIP(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"session": session.Token})
}

func (s *Server) handleSessionLookup(w http.ResponseWriter, r *http.Request) {
	if _, ok := serverIDOf(w, r); !ok {
		return
	}

	userID, err := s.opts.Servers.SessionUser(r.Context(), r.PathValue("token"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]map[string]int64{
		"user": {"id": userID},
	})
}
