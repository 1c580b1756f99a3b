// Package cache is a read-through JSON cache on Redis. Redis is never the
// source of truth: read failures fall back to the loader and are logged.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/redis/go-redis/v9"
)

const feedKey = "events:feed"

func EventKey(eventID string) string {
	return "events:" + eventID
}

func FeedKey() string {
	return feedKey
}

func EventStatsKey(eventID string) string {
	return "analytics:event:" + eventID
}

func CreatorStatsKey(creatorID string) string {
	return "analytics:creator:" + creatorID
}

type Cache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func New(rdb redis.Cmdable, ttl time.Duration) Cache {
	return Cache{
		rdb: rdb,
		ttl: ttl,
	}
}

// Get decodes the value at key into dst. It reports false on a miss.
func (c Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}

	return true, nil
}

func (c Cache) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}

	return nil
}

func (c Cache) Delete(ctx context.Context, keys ...string) error {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting %v: %w", keys, err)
	}

	return nil
}

// Load returns the cached value at key, or calls load and caches its result.
func Load[T any](ctx context.Context, c Cache, key string, load func(context.Context) (T, error)) (T, error) {
	logger := log.FromContext(ctx).WithField("cache_key", key)

	var cached T
	hit, err := c.Get(ctx, key, &cached)
	if err != nil {
		logger.WithError(err).Warn("Cache read failed, loading from store")
	}
	if hit {
		return cached, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	if err := c.Set(ctx, key, v); err != nil {
		logger.WithError(err).Warn("Cache write failed")
	}

	return v, nil
}
