// Package cache stores short-lived lookup results in redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"memory-map-backend/internal/config"
)

// RedisCache is a byte-value cache with per-entry expiry
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects to redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// NewRedisCache creates a cache whose keys all start with prefix
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Get returns the cached value; ok is false on a miss
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}
	return val, true, nil
}

// Set stores a value for ttl
func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// HealthPing reports whether redis answers
func (c *RedisCache) HealthPing(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
