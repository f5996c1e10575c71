// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cazexotono/MasterApi/internal/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalYAML = `
database:
  url: postgres://localhost/masterapi
auth:
  private_key_file: /etc/masterapi/signing.pem
`

func TestLoad(t *testing.T) {
	t.Run("file over defaults", func(t *testing.T) {
		path := writeConfigFile(t, minimalYAML+`
http:
  addr: 0.0.0.0:9999
registry:
  lease: 10s
`)

		cfg, err := config.Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0:9999", cfg.HTTP.Addr)
		assert.Equal(t, 10*time.Second, cfg.Registry.Lease)
		// Untouched values keep their defaults.
		assert.Equal(t, 2*time.Second, cfg.Registry.SweepInterval)
		assert.Equal(t, "json", cfg.Log.Format)
		assert.True(t, cfg.HTTP.CookieSecure)
	})

	t.Run("flags over file", func(t *testing.T) {
		path := writeConfigFile(t, minimalYAML+`
http:
  addr: 0.0.0.0:9999
`)

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("http.addr", "", "")
		require.NoError(t, flags.Parse([]string{"--http.addr", "127.0.0.1:7777"}))

		cfg, err := config.Load(path, flags)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:7777", cfg.HTTP.Addr)
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, err := config.Load("/no/such/config.yaml", nil)
		assert.Error(t, err)
	})

	t.Run("missing required settings fail validation", func(t *testing.T) {
		path := writeConfigFile(t, `
database:
  url: postgres://localhost/masterapi
`)
		_, err := config.Load(path, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "private_key_file")
	})

	t.Run("bad log format fails validation", func(t *testing.T) {
		path := writeConfigFile(t, minimalYAML+`
log:
  format: xml
`)
		_, err := config.Load(path, nil)
		assert.Error(t, err)
	})
}
