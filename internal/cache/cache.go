// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

// Package cache provides ephemeral keyed storage with per-key expiry.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key does not exist or has expired.
var ErrMiss = errors.New("cache miss")

// IsMiss reports whether err is a cache miss, unwrapping as needed.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// Cache is the keyed blackboard used by the device-linking handshake.
// Implementations must make single-key operations atomic; GetDel in
// particular is the unit that enforces single-consumption semantics.
type Cache interface {
	// Set stores a value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get retrieves the value for key, or ErrMiss if absent.
	Get(ctx context.Context, key string) (string, error)

	// GetDel atomically retrieves and removes the value for key,
	// or ErrMiss if absent. At most one concurrent caller observes
	// the value.
	GetDel(ctx context.Context, key string) (string, error)

	// Expire resets the TTL of an existing key. Expiring a missing
	// key returns ErrMiss.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
