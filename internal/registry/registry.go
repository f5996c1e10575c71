// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

// Package registry tracks which game servers are live right now. Liveness
// is lease-based: every heartbeat renews a short lease, and a background
// reaper drops servers whose lease lapsed. The registry is purely
// in-memory; durable server identity lives in the gameserver package.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/Cazexotono/MasterApi/internal/observability"
)

const (
	// DefaultLease is how long a heartbeat keeps a server live.
	DefaultLease = 7500 * time.Millisecond
	// DefaultSweepInterval is how often lapsed leases are reaped.
	DefaultSweepInterval = 2 * time.Second
)

// ErrServerNotRegistered is returned when an operation targets a server
// with no live lease.
var ErrServerNotRegistered = errors.New("server not registered")

// Mod describes one content file a game server requires clients to load.
type Mod struct {
	CRC32    uint32 `json:"crc32"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// ModManifest is the content manifest a game server publishes next to its
// game port. Field names are fixed by deployed servers and clients.
type ModManifest struct {
	Mods      []Mod    `json:"mods"`
	Version   int      `json:"versionMajor"`
	LoadOrder []string `json:"loadOrder"`
}

func (m *ModManifest) clone() ModManifest {
	out := ModManifest{Version: m.Version}
	if m.Mods != nil {
		out.Mods = make([]Mod, len(m.Mods))
		copy(out.Mods, m.Mods)
	}
	if m.LoadOrder != nil {
		out.LoadOrder = make([]string, len(m.LoadOrder))
		copy(out.LoadOrder, m.LoadOrder)
	}
	return out
}

// Record is the live state of one registered server.
type Record struct {
	DisplayName string
	Host        string
	Port        int
	Online      int
	MaxPlayers  int
	Gamemode    string
	Manifest    ModManifest
}

func (r *Record) clone() *Record {
	out := *r
	out.Manifest = r.Manifest.clone()
	return &out
}

// Registry is the live server directory. All access goes through one
// mutex; reads hand out deep copies so callers never observe concurrent
// mutation.
type Registry struct {
	mu      sync.Mutex
	leases  map[uuid.UUID]time.Time
	records map[uuid.UUID]*Record

	lease         time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithLease overrides the heartbeat lease duration.
func WithLease(d time.Duration) Option {
	return func(r *Registry) { r.lease = d }
}

// WithSweepInterval overrides the reaper interval.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) { r.sweepInterval = d }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		leases:        make(map[uuid.UUID]time.Time),
		records:       make(map[uuid.UUID]*Record),
		lease:         DefaultLease,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers (or replaces) a server and grants it a fresh lease.
func (r *Registry) Add(id uuid.UUID, record *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leases[id] = r.now().Add(r.lease)
	r.records[id] = record.clone()
	observability.SetServersOnline(len(r.records))
}

// Update renews a server's lease and refreshes its player count. Servers
// without a live lease must re-register through Add.
func (r *Registry) Update(id uuid.UUID, online int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return ErrServerNotRegistered
	}
	r.leases[id] = r.now().Add(r.lease)
	record.Online = online
	return nil
}

// Remove drops a server immediately, lease or not.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evict(id)
	observability.SetServersOnline(len(r.records))
}

// Get returns a copy of the live record for id, if present.
func (r *Registry) Get(id uuid.UUID) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return nil, false
	}
	return record.clone(), true
}

// ListOnline returns a snapshot of all live servers.
func (r *Registry) ListOnline() map[uuid.UUID]*Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[uuid.UUID]*Record, len(r.records))
	for id, record := range r.records {
		out[id] = record.clone()
	}
	return out
}

// Start launches the background reaper. It returns an error if the
// registry is already running.
func (r *Registry) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return oops.Errorf("registry already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.sweepLoop(ctx)

	slog.Info("registry started", "lease", r.lease, "sweep_interval", r.sweepInterval)
	return nil
}

// Stop halts the reaper and waits for it to exit. Stopping a registry
// that is not running is a no-op.
func (r *Registry) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}
	r.cancel()
	<-r.done
	slog.Info("registry stopped")
}

func (r *Registry) sweepLoop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep drops every server whose lease has lapsed. The background reaper
// calls it on every tick; it is exported so tests and shutdown paths can
// force a pass.
func (r *Registry) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, deadline := range r.leases {
		if deadline.Before(now) {
			slog.Debug("server lease expired", "server", id)
			r.evict(id)
		}
	}
	observability.SetServersOnline(len(r.records))
}

// evict removes a server. Callers must hold the lock.
func (r *Registry) evict(id uuid.UUID) {
	delete(r.leases, id)
	delete(r.records, id)
}
