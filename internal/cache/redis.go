// Package cache provides a Redis-backed cache-aside store for by-id lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"repohub/pkg/observability"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "repohub:"

// RedisCache stores JSON values in Redis under a common prefix.
// A nil *RedisCache is valid and behaves as an always-empty cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New wraps an existing client. A non-positive ttl stores keys without expiry.
func New(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Connect dials Redis at addr (a redis:// URL or host:port) and pings it.
// It returns nil and logs a warning when Redis is unreachable, so the
// application keeps running without a cache.
func Connect(ctx context.Context, addr string, ttl time.Duration) *RedisCache {
	if strings.TrimSpace(addr) == "" {
		return nil
	}
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			log.Warn().Err(err).Msg("invalid REDIS_URL, continuing without cache")
			return nil
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, continuing without cache")
		_ = client.Close()
		return nil
	}
	log.Info().Str("addr", opts.Addr).Msg("redis connected")
	return New(client, ttl)
}

// GetJSON decodes the value stored at key into dest.
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		observability.CacheRequestsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		observability.CacheRequestsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	observability.CacheRequestsTotal.WithLabelValues("hit").Inc()
	return true, nil
}

// SetJSON stores value at key as JSON.
func (c *RedisCache) SetJSON(ctx context.Context, key string, value interface{}) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = keyPrefix + k
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, keyPrefix+prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan %s*: %w", prefix, err)
	}
	if len(batch) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, batch...).Err(); err != nil {
		return fmt.Errorf("failed to delete %s*: %w", prefix, err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
