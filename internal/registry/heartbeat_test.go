// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package registry_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cazexotono/MasterApi/internal/registry"
)

type fakeFetcher struct {
	manifest *registry.ModManifest
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, _ int) (*registry.ModManifest, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.manifest, nil
}

func TestHeartbeatService_Beat(t *testing.T) {
	ctx := context.Background()
	endpoint := registry.Endpoint{Host: "203.0.113.7", Port: 27500, Gamemode: "pvp"}

	t.Run("unknown server fetches manifest and goes live", func(t *testing.T) {
		reg := registry.New()
		fetcher := &fakeFetcher{manifest: &registry.ModManifest{
			Version:   2,
			Mods:      []registry.Mod{{CRC32: 1, Filename: "base.pak", Size: 100}},
			LoadOrder: []string{"base.pak"},
		}}
		svc := registry.NewHeartbeatService(reg, fetcher)
		id := uuid.New()

		err := svc.Beat(ctx, id, endpoint, registry.Heartbeat{Name: "Frontier", Online: 8, MaxPlayers: 64})
		require.NoError(t, err)
		assert.Equal(t, 1, fetcher.calls)

		record, ok := reg.Get(id)
		require.True(t, ok)
		assert.Equal(t, "Frontier", record.DisplayName)
		assert.Equal(t, "203.0.113.7", record.Host)
		assert.Equal(t, 27500, record.Port)
		assert.Equal(t, 8, record.Online)
		assert.Equal(t, 64, record.MaxPlayers)
		assert.Equal(t, "pvp", record.Gamemode)
		assert.Equal(t, 2, record.Manifest.Version)
	})

	t.Run("known server renews without refetching", func(t *testing.T) {
		reg := registry.New()
		fetcher := &fakeFetcher{manifest: &registry.ModManifest{Version: 1}}
		svc := registry.NewHeartbeatService(reg, fetcher)
		id := uuid.New()

		require.NoError(t, svc.Beat(ctx, id, endpoint, registry.Heartbeat{Name: "Frontier", Online: 8, MaxPlayers: 64}))
		require.NoError(t, svc.Beat(ctx, id, endpoint, registry.Heartbeat{Name: "Frontier", Online: 9, MaxPlayers: 64}))

		assert.Equal(t, 1, fetcher.calls, "manifest fetched only on registration")

		record, ok := reg.Get(id)
		require.True(t, ok)
		assert.Equal(t, 9, record.Online)
	})

	t.Run("manifest failure keeps the server offline", func(t *testing.T) {
		reg := registry.New()
		fetcher := &fakeFetcher{err: registry.ErrManifestUnavailable}
		svc := registry.NewHeartbeatService(reg, fetcher)
		id := uuid.New()

		err := svc.Beat(ctx, id, endpoint, registry.Heartbeat{Name: "Frontier", Online: 8, MaxPlayers: 64})
		require.Error(t, err)
		assert.True(t, errors.Is(err, registry.ErrManifestUnavailable))

		_, ok := reg.Get(id)
		assert.False(t, ok)
	})
}

func TestHTTPManifestFetcher_Fetch(t *testing.T) {
	ctx := context.Background()

	// The fetcher targets the port above the game port, so hand it the
	// listener's port minus one.
	gamePortFor := func(srv *httptest.Server) (string, int) {
		host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
		require.NoError(t, err)
		port, err := strconv.Atoi(portStr)
		require.NoError(t, err)
		return host, port - 1
	}

	t.Run("decodes a published manifest", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/manifest.json", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"mods": [{"crc32": 305419896, "filename": "base.pak", "size": 2048}],
				"versionMajor": 4,
				"loadOrder": ["base.pak"]
			}`))
		}))
		defer srv.Close()

		host, port := gamePortFor(srv)
		manifest, err := registry.NewHTTPManifestFetcher().Fetch(ctx, host, port)
		require.NoError(t, err)
		assert.Equal(t, 4, manifest.Version)
		require.Len(t, manifest.Mods, 1)
		assert.Equal(t, uint32(0x12345678), manifest.Mods[0].CRC32)
		assert.Equal(t, []string{"base.pak"}, manifest.LoadOrder)
	})

	t.Run("non-200 response is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		host, port := gamePortFor(srv)
		_, err := registry.NewHTTPManifestFetcher().Fetch(ctx, host, port)
		assert.ErrorIs(t, err, registry.ErrManifestUnavailable)
	})

	t.Run("unreachable server is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		host, port := gamePortFor(srv)
		srv.Close()

		_, err := registry.NewHTTPManifestFetcher().Fetch(ctx, host, port)
		assert.ErrorIs(t, err, registry.ErrManifestUnavailable)
	})
}
