// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// ErrManifestUnavailable is returned when a registering server's manifest
// endpoint cannot be reached or returns garbage.
var ErrManifestUnavailable = errors.New("manifest unavailable")

// Heartbeat is the payload a game server reports on each beat.
type Heartbeat struct {
	Name       string `json:"name"`
	Online     int    `json:"online"`
	MaxPlayers int    `json:"maxPlayers"`
}

// Endpoint is where a game server can be reached, taken from its durable
// registration. The manifest is published one port above the game port.
type Endpoint struct {
	Host     string
	Port     int
	Gamemode string
}

// ManifestFetcher retrieves a server's content manifest.
type ManifestFetcher interface {
	Fetch(ctx context.Context, host string, port int) (*ModManifest, error)
}

// HTTPManifestFetcher fetches manifests over plain HTTP from the server's
// manifest port.
type HTTPManifestFetcher struct {
	client *http.Client
}

// NewHTTPManifestFetcher creates an HTTPManifestFetcher.
func NewHTTPManifestFetcher() *HTTPManifestFetcher {
	return &HTTPManifestFetcher{
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Fetch retrieves the manifest from http://host:port+1/manifest.json.
func (f *HTTPManifestFetcher) Fetch(ctx context.Context, host string, port int) (*ModManifest, error) {
	url := fmt.Sprintf("http://%s:%d/manifest.json", host, port+1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, oops.Code("MANIFEST_FETCH_FAILED").With("url", url).Wrap(err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, oops.Code("MANIFEST_FETCH_FAILED").
			With("url", url).
			Wrap(errors.Join(ErrManifestUnavailable, err))
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on read path

	if resp.StatusCode != http.StatusOK {
		return nil, oops.Code("MANIFEST_FETCH_FAILED").
			With("url", url).
			With("status", resp.StatusCode).
			Wrap(ErrManifestUnavailable)
	}

	var manifest ModManifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, oops.Code("MANIFEST_FETCH_FAILED").
			With("url", url).
			Wrap(errors.Join(ErrManifestUnavailable, err))
	}
	return &manifest, nil
}

var _ ManifestFetcher = (*HTTPManifestFetcher)(nil)

// HeartbeatService turns heartbeats into registry state. A beat from a
// server with a live lease is a cheap renewal; a beat from an unknown
// server triggers a manifest fetch before it goes live, so the directory
// never lists a server whose content clients cannot verify.
type HeartbeatService struct {
	registry  *Registry
	manifests ManifestFetcher
}

// NewHeartbeatService creates a HeartbeatService.
func NewHeartbeatService(registry *Registry, manifests ManifestFetcher) *HeartbeatService {
	return &HeartbeatService{registry: registry, manifests: manifests}
}

// Beat processes one heartbeat for the server at endpoint.
func (s *HeartbeatService) Beat(ctx context.Context, id uuid.UUID, endpoint Endpoint, beat Heartbeat) error {
	err := s.registry.Update(id, beat.Online)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrServerNotRegistered) {
		return err
	}

	manifest, err := s.manifests.Fetch(ctx, endpoint.Host, endpoint.Port)
	if err != nil {
		return err
	}

	s.registry.Add(id, &Record{
		DisplayName: beat.Name,
		Host:        endpoint.Host,
		Port:        endpoint.Port,
		Online:      beat.Online,
		MaxPlayers:  beat.MaxPlayers,
		Gamemode:    endpoint.Gamemode,
		Manifest:    *manifest,
	})
	return nil
}
