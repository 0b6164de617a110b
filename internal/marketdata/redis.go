package marketdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/quantbr/ticksynth/internal/model"
)

// RedisCache implements Cache against a shared Redis instance so
// multiple pipeline runs (or hosts) reuse the same fetched candles.
// Failures degrade to cache misses; the source of truth is upstream.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed candle cache
func NewRedisCache(addr, password string, db int) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: client, prefix: "ticksynth:candles:"}
}

// Get retrieves a candle batch from Redis
func (c *RedisCache) Get(ctx context.Context, key string) ([]model.Candle, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("Redis cache read failed")
		}
		return nil, false
	}

	var candles []model.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis cache entry corrupt, dropping")
		c.client.Del(ctx, c.prefix+key)
		return nil, false
	}
	return candles, true
}

// Set stores a candle batch in Redis with a TTL
func (c *RedisCache) Set(ctx context.Context, key string, candles []model.Candle, ttl time.Duration) {
	data, err := json.Marshal(candles)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to marshal candles for cache")
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis cache write failed")
	}
}

// Ping verifies connectivity at startup
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
