package echoapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/trezcool/skytraining/core"
)

const rateLimitKeyPrefix = "ratelimit:"

// redisRateLimiterStore is a fixed window limiter shared by every API instance:
// the first hit of a window creates the counter and sets its expiry.
// Requests are let through while Redis is unreachable.
type redisRateLimiterStore struct {
	client  redis.UniversalClient
	limit   int64
	window  time.Duration
	timeout time.Duration
	logger  core.Logger
}

var _ middleware.RateLimiterStore = (*redisRateLimiterStore)(nil)

func newRedisRateLimiterStore(client redis.UniversalClient, limit int, window time.Duration, logger core.Logger) *redisRateLimiterStore {
	return &redisRateLimiterStore{client: client, limit: int64(limit), window: window, timeout: time.Second, logger: logger}
}

func (s *redisRateLimiterStore) Allow(identifier string) (bool, error) {
	hits, err := s.hit(rateLimitKeyPrefix + identifier)
	if err != nil {
		s.logger.Warn("rate limiter unavailable", err)
		return true, nil
	}
	return hits <= s.limit, nil
}

func (s *redisRateLimiterStore) hit(key string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	hits, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "incrementing rate limit counter")
	}
	if hits == 1 {
		if err = s.client.Expire(ctx, key, s.window).Err(); err != nil {
			return 0, errors.Wrap(err, "setting rate limit window")
		}
	}
	return hits, nil
}

// NewRateLimiterStore returns the Redis store when `rateLimit.redisAddr` is set, else a process-local one.
// The returned close func releases the Redis connections.
func NewRateLimiterStore(conf *core.Config, logger core.Logger) (middleware.RateLimiterStore, func() error) {
	rl := conf.RateLimit
	if rl.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     rl.RedisAddr,
			Password: rl.RedisPassword,
			DB:       rl.RedisDB,
		})
		return newRedisRateLimiterStore(client, rl.Requests, rl.Window, logger), client.Close
	}

	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(rl.Requests) / rl.Window.Seconds()),
		Burst:     rl.Requests,
		ExpiresIn: rl.Window,
	})
	return store, func() error { return nil }
}

// rateLimiter limits the `/api` routes per client IP.
func rateLimiter(store middleware.RateLimiterStore) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(ctx echo.Context) bool {
			return !strings.HasPrefix(ctx.Request().URL.Path, apiPrefix+"/")
		},
		Store: store,
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "Unable to identify the client").SetInternal(err)
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			if err != nil {
				return errors.Wrap(err, "checking rate limit")
			}
			return errTooManyRequests
		},
	})
}
