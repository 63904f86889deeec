package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"recipeassistant"
)

const keyPrefix = "recipeassistant:search:"

// RedisClient is the subset of *redis.Client the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Redis shares search results between server replicas. Read and write errors
// are logged and treated as misses.
type Redis struct {
	client RedisClient
	ttl    time.Duration
}

func NewRedis(client RedisClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) (recipeassistant.SearchResult, bool) {
	var res recipeassistant.SearchResult

	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("CACHE: Redis get failed", "key", key, "error", err)
		}
		return res, false
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		slog.Warn("CACHE: Discarding unreadable cache entry", "key", key, "error", err)
		return recipeassistant.SearchResult{}, false
	}
	return res, true
}

func (r *Redis) Set(ctx context.Context, key string, res recipeassistant.SearchResult) {
	raw, err := json.Marshal(res)
	if err != nil {
		slog.Warn("CACHE: Failed to encode search result", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, keyPrefix+key, raw, r.ttl).Err(); err != nil {
		slog.Warn("CACHE: Redis set failed", "key", key, "error", err)
	}
}
