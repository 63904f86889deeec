// Package cache holds the search result caches used by the orchestrator.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"recipeassistant"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Memory is an in-process LRU whose entries expire after a fixed TTL.
type Memory struct {
	lru *expirable.LRU[string, recipeassistant.SearchResult]
}

func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = 256
	}
	return &Memory{lru: expirable.NewLRU[string, recipeassistant.SearchResult](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) (recipeassistant.SearchResult, bool) {
	return m.lru.Get(key)
}

func (m *Memory) Set(_ context.Context, key string, res recipeassistant.SearchResult) {
	m.lru.Add(key, res)
}

func (m *Memory) Len() int {
	return m.lru.Len()
}

// New builds the cache selected by cfg. It returns nil, nil when caching is off.
func New(ctx context.Context, cfg recipeassistant.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		return NewMemory(cfg.Size, cfg.TTL), nil
	case BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Warn("CACHE: Redis unreachable, continuing without search cache", "error", err)
			_ = client.Close()
			return nil, nil
		}
		return NewRedis(client, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown search cache backend %q", cfg.Backend)
	}
}

// Cache matches orchestrator.SearchCache.
type Cache interface {
	Get(ctx context.Context, key string) (recipeassistant.SearchResult, bool)
	Set(ctx context.Context, key string, res recipeassistant.SearchResult)
}
