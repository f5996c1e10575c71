// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

// Package config loads the MasterApi configuration from defaults, an
// optional YAML file, and command-line flags, in that order of
// precedence (later sources win).
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full MasterApi configuration.
type Config struct {
	HTTP      HTTP      `koanf:"http"`
	Metrics   Metrics   `koanf:"metrics"`
	Database  Database  `koanf:"database"`
	Redis     Redis     `koanf:"redis"`
	Auth      Auth      `koanf:"auth"`
	Handshake Handshake `koanf:"handshake"`
	Registry  Registry  `koanf:"registry"`
	Log       Log       `koanf:"log"`
}

// HTTP configures the public API server.
type HTTP struct {
	Addr         string `koanf:"addr"`
	CookieSecure bool   `koanf:"cookie_secure"`
}

// Metrics configures the observability server. An empty address disables
// it.
type Metrics struct {
	Addr string `koanf:"addr"`
}

// Database configures PostgreSQL connectivity.
type Database struct {
	URL string `koanf:"url"`
}

// Redis configures the handshake cache. An empty URL selects the
// in-process cache, suitable only for single-instance deployments.
type Redis struct {
	URL string `koanf:"url"`
}

// Auth configures token signing.
type Auth struct {
	Issuer         string `koanf:"issuer"`
	PrivateKeyFile string `koanf:"private_key_file"`
}

// Handshake configures the browser redirect targets of the device-link
// flow.
type Handshake struct {
	AuthenticatedURL string `koanf:"authenticated_url"`
	AnonymousURL     string `koanf:"anonymous_url"`
}

// Registry configures live-presence leasing.
type Registry struct {
	Lease         time.Duration `koanf:"lease"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// Log configures logging output.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTP{
			Addr:         "127.0.0.1:8080",
			CookieSecure: true,
		},
		Metrics: Metrics{
			Addr: "127.0.0.1:9100",
		},
		Auth: Auth{
			Issuer: "masterapi",
		},
		Handshake: Handshake{
			AuthenticatedURL: "/link",
			AnonymousURL:     "/login",
		},
		Registry: Registry{
			Lease:         7500 * time.Millisecond,
			SweepInterval: 2 * time.Second,
		},
		Log: Log{
			Format: "json",
			Level:  "info",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at
// path (if non-empty), then the given flag set (if non-nil).
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return cfg, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load flags").
				Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr is required")
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}
	if c.Auth.PrivateKeyFile == "" {
		return oops.Code("CONFIG_INVALID").Errorf("auth.private_key_file is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if c.Registry.Lease <= 0 || c.Registry.SweepInterval <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("registry.lease and registry.sweep_interval must be positive")
	}
	return nil
}
