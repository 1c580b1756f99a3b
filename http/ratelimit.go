package http

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
)

// redisRateStore is a fixed-window counter shared by every instance. INCR
// and EXPIRE NX go in one transaction so a counter never outlives its window.
type redisRateStore struct {
	rdb    redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
}

func newRedisRateStore(rdb redis.Cmdable, prefix string, limit int, window time.Duration) *redisRateStore {
	return &redisRateStore{
		rdb:    rdb,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

// Allow fails open when Redis is unavailable.
func (s *redisRateStore) Allow(identifier string) (bool, error) {
	ctx := context.Background()
	key := fmt.Sprintf("ratelimit:%s:%s", s.prefix, identifier)

	var count *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, s.window)
		return nil
	})
	if err != nil {
		log.FromContext(ctx).WithError(err).Warn("Rate limiter unavailable, allowing request")
		return true, nil
	}

	return count.Val() <= s.limit, nil
}

func rateLimitByIP(store middleware.RateLimiterStore) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
	})
}

func rateLimitByUser(store middleware.RateLimiterStore) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if id := claimsFrom(c).UserID(); id != "" {
				return "user:" + id, nil
			}
			return c.RealIP(), nil
		},
	})
}
