// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// RedisCache implements Cache on a Redis client.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// DialRedis connects to Redis using a redis:// URL and verifies the
// connection with a ping.
func DialRedis(ctx context.Context, url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("CACHE_BAD_URL").With("operation", "parse redis url").Wrap(err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // connection failed, close is best effort
		return nil, oops.Code("CACHE_UNREACHABLE").With("operation", "ping redis").Wrap(err)
	}
	return &RedisCache{client: client}, nil
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	if err := c.client.Close(); err != nil {
		return oops.Code("CACHE_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

// Set stores a value under key with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return oops.Code("CACHE_SET_FAILED").With("key", key).Wrap(err)
	}
	return nil
}

// Get retrieves the value for key, or ErrMiss if absent.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", oops.Code("CACHE_GET_FAILED").With("key", key).Wrap(err)
	}
	return value, nil
}

// GetDel atomically retrieves and removes the value for key.
func (c *RedisCache) GetDel(ctx context.Context, key string) (string, error) {
	value, err := c.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", oops.Code("CACHE_GETDEL_FAILED").With("key", key).Wrap(err)
	}
	return value, nil
}

// Expire resets the TTL of an existing key.
func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := c.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return oops.Code("CACHE_EXPIRE_FAILED").With("key", key).Wrap(err)
	}
	if !ok {
		return ErrMiss
	}
	return nil
}

// Delete removes a key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return oops.Code("CACHE_DELETE_FAILED").With("key", key).Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ Cache = (*RedisCache)(nil)
