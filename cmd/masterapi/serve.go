// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/Cazexotono/MasterApi/internal/account"
	accountpg "github.com/Cazexotono/MasterApi/internal/account/postgres"
	"github.com/Cazexotono/MasterApi/internal/cache"
	"github.com/Cazexotono/MasterApi/internal/config"
	"github.com/Cazexotono/MasterApi/internal/gameserver"
	gameserverpg "github.com/Cazexotono/MasterApi/internal/gameserver/postgres"
	"github.com/Cazexotono/MasterApi/internal/handshake"
	"github.com/Cazexotono/MasterApi/internal/httpapi"
	"github.com/Cazexotono/MasterApi/internal/logging"
	"github.com/Cazexotono/MasterApi/internal/observability"
	"github.com/Cazexotono/MasterApi/internal/registry"
	"github.com/Cazexotono/MasterApi/internal/store"
	"github.com/Cazexotono/MasterApi/internal/token"
	tokenpg "github.com/Cazexotono/MasterApi/internal/token/postgres"
)

// tokenSweepInterval is how often expired refresh records are purged.
const tokenSweepInterval = time.Hour

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the master API server",
		Long: `Start the master API server: the public REST API, the device-link
handshake endpoints, the live server directory, and the metrics server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	// Flag names mirror config file keys; set flags win over the file.
	defaults := config.Default()
	cmd.Flags().String("http.addr", defaults.HTTP.Addr, "API listen address")
	cmd.Flags().String("metrics.addr", defaults.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("redis.url", "", "Redis URL for the handshake cache (empty = in-process cache)")
	cmd.Flags().String("auth.issuer", defaults.Auth.Issuer, "JWT issuer")
	cmd.Flags().String("auth.private_key_file", "", "PEM file with the RSA signing key")
	cmd.Flags().String("log.format", defaults.Log.Format, "log format (json or text)")
	cmd.Flags().String("log.level", defaults.Log.Level, "log level (debug, info, warn, error)")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("masterapi", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))

	slog.Info("starting masterapi",
		"http_addr", cfg.HTTP.Addr,
		"log_format", cfg.Log.Format,
	)

	signingKey, err := loadSigningKey(cfg.Auth.PrivateKeyFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("connected to database")

	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close() //nolint:errcheck // migration error takes precedence
		return err
	}
	if err := migrator.Close(); err != nil {
		return err
	}
	slog.Info("database schema up to date")

	handshakeCache, err := openCache(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}

	accounts := account.NewService(accountpg.NewUserRepository(pool), account.NewArgon2idHasher())

	signer := token.NewSigner(cfg.Auth.Issuer, signingKey, token.DefaultPolicy())
	tokenRecords := tokenpg.NewRefreshTokenRepository(pool)
	tokens := token.NewManager(signer, tokenRecords, accounts)

	links := handshake.NewService(handshakeCache, accounts)
	links.AuthenticatedURL = cfg.Handshake.AuthenticatedURL
	links.AnonymousURL = cfg.Handshake.AnonymousURL

	live := registry.New(
		registry.WithLease(cfg.Registry.Lease),
		registry.WithSweepInterval(cfg.Registry.SweepInterval),
	)
	if err := live.Start(ctx); err != nil {
		return err
	}
	defer live.Stop()

	beats := registry.NewHeartbeatService(live, registry.NewHTTPManifestFetcher())

	servers := gameserver.NewService(
		gameserverpg.NewServerRepository(pool),
		gameserverpg.NewSessionRepository(pool),
		links,
	)

	// Observability server is optional.
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, func() bool {
			return pool.Ping(ctx) == nil
		})
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		metrics = obsServer.Metrics()
	}

	api := httpapi.NewServer(httpapi.Options{
		Addr:         cfg.HTTP.Addr,
		CookieSecure: cfg.HTTP.CookieSecure,
		Tokens:       tokens,
		Accounts:     accounts,
		Links:        links,
		Servers:      servers,
		Live:         live,
		Heartbeats:   beats,
		Metrics:      metrics,
	})
	apiErrCh, err := api.Start()
	if err != nil {
		if obsServer != nil {
			stopServer(obsServer.Stop, "observability")
		}
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	go sweepExpiredTokens(ctx, tokenRecords)

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	slog.Info("masterapi ready", "addr", api.Addr())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	stopServer(api.Stop, "api")
	if obsServer != nil {
		stopServer(obsServer.Stop, "observability")
	}

	slog.Info("shutdown complete")
	return nil
}

// openCache selects the handshake cache backend: Redis when configured,
// otherwise the in-process cache.
func openCache(ctx context.Context, redisURL string) (cache.Cache, error) {
	if redisURL == "" {
		slog.Warn("redis.url not set, using in-process handshake cache; device links will not survive restarts or span instances")
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.DialRedis(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	slog.Info("connected to redis")
	return c, nil
}

// loadSigningKey reads the RSA private key used for token signing.
func loadSigningKey(path string) (*rsa.PrivateKey, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("SIGNING_KEY_FAILED").With("path", path).Wrap(err)
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, oops.Code("SIGNING_KEY_FAILED").
			With("path", path).
			Errorf("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, oops.Code("SIGNING_KEY_FAILED").With("path", path).Wrap(err)
		}
		return key, nil
	default:
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, oops.Code("SIGNING_KEY_FAILED").With("path", path).Wrap(err)
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, oops.Code("SIGNING_KEY_FAILED").
				With("path", path).
				Errorf("key is not RSA")
		}
		return key, nil
	}
}

// sweepExpiredTokens periodically purges refresh records past their expiry.
func sweepExpiredTokens(ctx context.Context, records token.RefreshTokenRepository) {
	ticker := time.NewTicker(tokenSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := records.DeleteExpired(ctx)
			if err != nil {
				slog.Warn("expired token sweep failed", "error", err)
				continue
			}
			if count > 0 {
				slog.Debug("expired refresh records purged", "count", count)
			}
		}
	}
}

// stopServer shuts a server down with a bounded timeout.
func stopServer(stop func(context.Context) error, name string) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := stop(shutdownCtx); err != nil {
		slog.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors monitors a server's error channel and cancels the
// context on error, so a server failure triggers graceful shutdown of the
// whole process.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
