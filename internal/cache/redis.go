package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"HomePulse/internal/models"
)

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis verifies the connection and returns a cache over the client.
// Connection failure is an error here so the caller can degrade to Noop.
func NewRedis(client *redis.Client, ttl time.Duration, log *slog.Logger) (Cache, error) {
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	log.Info("connected to Redis")
	return &redisCache{client: client, ttl: ttl, logger: log}, nil
}

func statusKey(id string) string {
	return fmt.Sprintf("status:%s", id)
}

func metricsKey(id, rangeKey string) string {
	return fmt.Sprintf("metrics:%s:%s", id, rangeKey)
}

func (c *redisCache) CacheServerStatus(ctx context.Context, id string, state models.ServiceState) {
	c.set(ctx, statusKey(id), state)
}

func (c *redisCache) CachedServerStatus(ctx context.Context, id string) (models.ServiceState, bool) {
	var state models.ServiceState
	ok := c.get(ctx, statusKey(id), &state)
	return state, ok
}

func (c *redisCache) CacheServerMetrics(ctx context.Context, id, rangeKey string, metrics models.ServiceMetrics) {
	c.set(ctx, metricsKey(id, rangeKey), metrics)
}

func (c *redisCache) CachedServerMetrics(ctx context.Context, id, rangeKey string) (models.ServiceMetrics, bool) {
	var metrics models.ServiceMetrics
	ok := c.get(ctx, metricsKey(id, rangeKey), &metrics)
	if ok {
		metrics.Source = "cache"
	}
	return metrics, ok
}

func (c *redisCache) ClearServer(ctx context.Context, id string) {
	pattern := fmt.Sprintf("metrics:%s:*", id)

	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil {
		c.logger.Warn("failed to list metric cache keys", "error", err, "service_id", id)
		keys = nil
	}
	keys = append(keys, statusKey(id))

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("failed to clear cache entries", "error", err, "service_id", id)
	}
}

func (c *redisCache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// set is fire-and-forget relative to the caller.
func (c *redisCache) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("failed to marshal cache entry", "error", err, "key", key)
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to write cache entry", "error", err, "key", key)
	}
}

func (c *redisCache) get(ctx context.Context, key string, out interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", "error", err, "key", key)
		}
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("failed to unmarshal cache entry", "error", err, "key", key)
		return false
	}

	return true
}
