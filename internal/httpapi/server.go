// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

// Package httpapi serves the public MasterApi REST surface: account and
// token endpoints, the device-link handshake, and the server directory.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/Cazexotono/MasterApi/internal/account"
	"github.com/Cazexotono/MasterApi/internal/gameserver"
	"github.com/Cazexotono/MasterApi/internal/handshake"
	"github.com/Cazexotono/MasterApi/internal/observability"
	"github.com/Cazexotono/MasterApi/internal/registry"
	"github.com/Cazexotono/MasterApi/internal/token"
)

// Options wires the Server's collaborators.
type Options struct {
	Addr         string
	CookieSecure bool

	Tokens     *token.Manager
	Accounts   *account.Service
	Links      *handshake.Service
	Servers    *gameserver.Service
	Live       *registry.Registry
	Heartbeats *registry.HeartbeatService

	// Metrics is optional; without it request counts are not recorded.
	Metrics *observability.Metrics
}

// Server is the public API server.
type Server struct {
	opts       Options
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	return &Server{opts: opts}
}

// Start begins serving. It returns an error channel that receives any
// serve failure; the channel is closed on graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.opts.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	slog.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if not
// running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)

	mux.HandleFunc("GET /auth/state", s.handleStateBegin)
	mux.HandleFunc("GET /auth/state/status", s.handleStatePoll)
	mux.HandleFunc("POST /auth/state/status", s.handleStateResolve)

	mux.HandleFunc("GET /api/servers", s.handleServersList)
	mux.HandleFunc("POST /api/servers", s.handleServerCreate)
	mux.HandleFunc("GET /api/servers/{uuid}", s.handleServerInfo)
	mux.HandleFunc("POST /api/servers/{uuid}/heartbeat", s.handleServerHeartbeat)
	mux.HandleFunc("GET /api/servers/{uuid}/online", s.handleServerOnline)
	mux.HandleFunc("GET /api/servers/{uuid}/connect", s.handleServerConnect)
	mux.HandleFunc("GET /api/servers/{uuid}/manifest", s.handleServerManifest)
	mux.HandleFunc("POST /api/servers/{uuid}/sessions", s.handleSessionCreate)
	mux.HandleFunc("GET /api/servers/{uuid}/sessions/{token}", s.handleSessionLookup)

	mux.HandleFunc("GET /api/users/{id}", s.handleUserInfo)
	mux.HandleFunc("PATCH /api/users/{id}", s.handleUserUpdate)

	return s.countRequests(mux)
}

// countRequests records per-route request totals when metrics are wired.
func (s *Server) countRequests(next http.Handler) http.Handler {
	if s.opts.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.opts.Metrics.RequestsTotal.
			WithLabelValues(route, strconv.Itoa(rec.status)).
			Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// authenticate runs per-request token validation. A nil claims result
// with a nil error means the request is unauthenticated; rotations have
// already been staged on the jar.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*token.AccessClaims, *cookieJar, error) {
	jar := newCookieJar(w, r, s.opts.CookieSecure)
	claims, err := s.opts.Tokens.Validate(r.Context(), jar, deviceOf(r))
	return claims, jar, err
}

// clientIP extracts the request's source address, honoring X-Real-IP set
// by the fronting proxy.
func clientIP(r *http.Request) netip.Addr {
	if real := r.Header.Get("X-Real-IP"); real != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(real)); err == nil {
			return addr
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return addr
}
