package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"cargohold/internal/placement"
)

const (
	// DefaultRedisKeyPrefix is the key prefix for cached container states.
	DefaultRedisKeyPrefix = "cargohold:container:"

	// DefaultRedisTTL is the default time-to-live for cached data.
	DefaultRedisTTL = 5 * time.Minute
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379" or "redis://:password@host:6379/0")
	URL string

	// KeyPrefix namespaces the container state keys (defaults to "cargohold:container:")
	KeyPrefix string

	// TTL is the time-to-live for cached data (defaults to 5 minutes)
	TTL time.Duration
}

// RedisCache implements Cache using Redis for distributed storage.
// This is suitable for multi-instance deployments behind a load balancer.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisCache creates a new Redis-based cache.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultRedisTTL
	}

	slog.Info("redis cache connected", "key_prefix", keyPrefix, "ttl", ttl)

	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}, nil
}

func (c *RedisCache) key(containerID string) string {
	return c.keyPrefix + containerID
}

// Get retrieves the cached state for a container from Redis.
func (c *RedisCache) Get(ctx context.Context, containerID string) (*placement.ContainerState, error) {
	data, err := c.client.Get(ctx, c.key(containerID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Not cached, not an error
		}
		return nil, fmt.Errorf("failed to get container state from redis: %w", err)
	}

	var state placement.ContainerState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse container state from redis: %w", err)
	}

	return &state, nil
}

// Set stores the state for a container in Redis.
func (c *RedisCache) Set(ctx context.Context, containerID string, state *placement.ContainerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal container state: %w", err)
	}

	if err := c.client.Set(ctx, c.key(containerID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set container state in redis: %w", err)
	}

	return nil
}

// Invalidate drops the cached state for a container.
func (c *RedisCache) Invalidate(ctx context.Context, containerID string) error {
	if err := c.client.Del(ctx, c.key(containerID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate container state in redis: %w", err)
	}
	return nil
}

// InvalidateAll drops every cached container state under the key prefix.
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cached key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached keys: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
