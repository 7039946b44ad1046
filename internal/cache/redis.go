package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "phtourism/internal/errors"
)

// KeyPrefix namespaces view payloads in a shared Redis.
const KeyPrefix = "phtourism:views:"

// Client is the subset of the go-redis client used by RedisCache.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// OpenRedis returns a client for addr, or nil when addr is empty.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// RedisCache shares payloads between replicas. Redis errors are logged and
// reported as misses.
type RedisCache struct {
	client Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache wraps a go-redis client.
func NewRedisCache(logger *slog.Logger, client Client, ttl time.Duration) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "redis_cache")),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := c.client.Get(ctx, KeyPrefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false
	case err != nil:
		c.logger.WarnContext(ctx, "redis get failed", slog.String("key", key), slog.Any("error", apperrors.NewStorageError("redis get", err)))
		return nil, false
	}
	return payload, true
}

func (c *RedisCache) Set(ctx context.Context, key string, payload []byte) {
	if err := c.client.Set(ctx, KeyPrefix+key, payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "redis set failed", slog.String("key", key), slog.Any("error", apperrors.NewStorageError("redis set", err)))
	}
}
