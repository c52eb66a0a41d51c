// Package cache stores analysis results in Redis keyed by the rendered prompt.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cyberwill/backend/internal/extract"
)

const keyPrefix = "cyberwill:analysis:"

type AnalysisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to url (redis://...) and verifies the connection.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*AnalysisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(rdb, ttl), nil
}

func New(rdb *redis.Client, ttl time.Duration) *AnalysisCache {
	return &AnalysisCache{rdb: rdb, ttl: ttl}
}

// Key derives the cache key for a prompt sent to the named provider.
func Key(providerName, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return keyPrefix + providerName + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached result for key. A miss is (zero, false, nil).
func (c *AnalysisCache) Get(ctx context.Context, key string) (extract.Result, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return extract.Result{}, false, nil
	}
	if err != nil {
		return extract.Result{}, false, fmt.Errorf("redis get: %w", err)
	}

	var result extract.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return extract.Result{}, false, fmt.Errorf("decode cached analysis: %w", err)
	}
	return result, true, nil
}

func (c *AnalysisCache) Set(ctx context.Context, key string, result extract.Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *AnalysisCache) Close() error {
	return c.rdb.Close()
}
