package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/common/metrics"
	"tourism-retrieval/internal/models"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// RedisCache shares entries across engine replicas. Redis failures degrade to
// cache misses; they never fail a search.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration, log logger.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.Component(log, "cache"),
	}
}

func (c *RedisCache) key(region, query, category string) string {
	return c.prefix + Key(region, query, category)
}

func (c *RedisCache) Get(ctx context.Context, region, query, category string) []models.SearchResult {
	key := c.key(region, query, category)

	cached, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		metrics.CacheOperations.WithLabelValues("redis", "miss").Inc()
		return []models.SearchResult{}
	}
	if err != nil {
		c.warn("cache read failed", key, apperrors.NewCacheUnavailableError(err))
		return []models.SearchResult{}
	}

	var results []models.SearchResult
	if err := json.Unmarshal([]byte(cached), &results); err != nil {
		c.warn("cache entry undecodable", key, err)
		return []models.SearchResult{}
	}

	metrics.CacheOperations.WithLabelValues("redis", "hit").Inc()
	return clone(results)
}

func (c *RedisCache) Put(ctx context.Context, region, query, category string, results []models.SearchResult) {
	key := c.key(region, query, category)

	payload, err := json.Marshal(clone(results))
	if err != nil {
		c.warn("cache entry unencodable", key, err)
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.warn("cache write failed", key, apperrors.NewCacheUnavailableError(err))
		return
	}
	metrics.CacheOperations.WithLabelValues("redis", "put").Inc()
}

// Clear deletes every key under the cache prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			return apperrors.NewCacheUnavailableError(err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return apperrors.NewCacheUnavailableError(err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Size counts keys under the cache prefix. It returns 0 when redis is down.
func (c *RedisCache) Size(ctx context.Context) int {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			c.warn("cache size scan failed", c.prefix, err)
			return total
		}
		total += len(keys)
		if next == 0 {
			return total
		}
		cursor = next
	}
}

func (c *RedisCache) warn(msg, key string, err error) {
	metrics.CacheOperations.WithLabelValues("redis", "error").Inc()
	c.logger.Warn(msg, map[string]interface{}{
		"key":   key,
		"error": err.Error(),
	})
}
