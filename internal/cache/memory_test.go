// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cazexotono/MasterApi/internal/cache"
)

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored value", func(t *testing.T) {
		c := cache.NewMemoryCache()
		require.NoError(t, c.Set(ctx, "state:abc", "none", time.Minute))

		value, err := c.Get(ctx, "state:abc")
		require.NoError(t, err)
		assert.Equal(t, "none", value)
	})

	t.Run("missing key returns ErrMiss", func(t *testing.T) {
		c := cache.NewMemoryCache()

		_, err := c.Get(ctx, "nope")
		assert.ErrorIs(t, err, cache.ErrMiss)
	})

	t.Run("overwrite replaces value and TTL", func(t *testing.T) {
		c := cache.NewMemoryCache()
		require.NoError(t, c.Set(ctx, "k", "v1", time.Minute))
		require.NoError(t, c.Set(ctx, "k", "v2", time.Hour))

		value, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v2", value)
	})
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()

	t.Run("expired key is a miss", func(t *testing.T) {
		c := cache.NewMemoryCache()
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		c.SetClock(func() time.Time { return now })

		require.NoError(t, c.Set(ctx, "k", "v", 30*time.Second))

		now = now.Add(31 * time.Second)
		_, err := c.Get(ctx, "k")
		assert.ErrorIs(t, err, cache.ErrMiss)
	})

	t.Run("expire extends deadline", func(t *testing.T) {
		c := cache.NewMemoryCache()
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		c.SetClock(func() time.Time { return now })

		require.NoError(t, c.Set(ctx, "k", "v", 30*time.Second))
		require.NoError(t, c.Expire(ctx, "k", 5*time.Minute))

		now = now.Add(time.Minute)
		value, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", value)
	})

	t.Run("expire on missing key returns ErrMiss", func(t *testing.T) {
		c := cache.NewMemoryCache()
		assert.ErrorIs(t, c.Expire(ctx, "k", time.Minute), cache.ErrMiss)
	})
}

func TestMemoryCache_GetDel(t *testing.T) {
	ctx := context.Background()

	t.Run("returns value and removes key", func(t *testing.T) {
		c := cache.NewMemoryCache()
		require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

		value, err := c.GetDel(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", value)

		_, err = c.Get(ctx, "k")
		assert.ErrorIs(t, err, cache.ErrMiss)
	})

	t.Run("exactly one concurrent caller wins", func(t *testing.T) {
		c := cache.NewMemoryCache()
		require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

		const callers = 16
		var wg sync.WaitGroup
		wins := make(chan string, callers)

		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if value, err := c.GetDel(ctx, "k"); err == nil {
					wins <- value
				}
			}()
		}
		wg.Wait()
		close(wins)

		var got []string
		for v := range wins {
			got = append(got, v)
		}
		require.Len(t, got, 1)
		assert.Equal(t, "v", got[0])
	})
}

func TestMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()

	c := cache.NewMemoryCache()
	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))
	require.NoError(t, c.Delete(ctx, "k")) // idempotent

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)
}
