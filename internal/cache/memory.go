// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package cache

import (
	"context"
	"sync"
	"time"
)

// memoryEntry is a value with its expiry deadline.
type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// expired reports whether the entry is past its deadline at time now.
func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache is an in-process Cache with per-key TTL. Expired keys are
// reaped lazily on access, so an expired key is indistinguishable from a
// missing one. Suitable for tests and single-node deployments.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Set stores a value under key with the given TTL. A non-positive TTL
// stores the value without expiry.
func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

// Get retrieves the value for key, or ErrMiss if absent or expired.
func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.live(key)
	if !ok {
		return "", ErrMiss
	}
	return entry.value, nil
}

// GetDel retrieves and removes the value for key under one lock hold,
// so at most one concurrent caller observes the value.
func (c *MemoryCache) GetDel(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.live(key)
	if !ok {
		return "", ErrMiss
	}
	delete(c.entries, key)
	return entry.value, nil
}

// Expire resets the TTL of an existing key.
func (c *MemoryCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.live(key)
	if !ok {
		return ErrMiss
	}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	} else {
		entry.expiresAt = time.Time{}
	}
	c.entries[key] = entry
	return nil
}

// Delete removes a key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// live returns the entry for key if it exists and has not expired,
// reaping it otherwise. Callers must hold the lock.
func (c *MemoryCache) live(key string) (memoryEntry, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if entry.expired(c.now()) {
		delete(c.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

// Compile-time interface check.
var _ Cache = (*MemoryCache)(nil)
