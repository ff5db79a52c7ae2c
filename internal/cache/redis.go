// Package cache provides a Redis-backed read-through cache for admin
// configuration values shared by every API instance.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/pix-panel/internal/config"
)

const keyPrefix = "pixpanel:config:"

// Redis caches string values under a namespaced key with a fixed TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to cfg.Addr and verifies the connection with PING.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisWithClient(client, cfg.TTL), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

// Key returns the Redis key used for a config key.
func Key(k string) string { return keyPrefix + k }

// Get returns the cached value and whether it was present.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores value for the configured TTL.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, Key(key), value, r.ttl).Err()
}

// Delete drops a cached value.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, Key(key)).Err()
}

// Close releases the connection pool.
func (r *Redis) Close() error { return r.client.Close() }
