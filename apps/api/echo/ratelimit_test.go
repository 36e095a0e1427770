package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/skytraining/core"
)

func newRedisStore(t *testing.T, limit int, window time.Duration) (*redisRateLimiterStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return newRedisRateLimiterStore(client, limit, window, core.NewNopLogger()), mr
}

func TestRedisRateLimiterStore_Allow(t *testing.T) {
	store, mr := newRedisStore(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, err := store.Allow("10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "hit %d", i+1)
	}
	allowed, err := store.Allow("10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)

	// other clients have their own window
	allowed, err = store.Allow("10.0.0.2")
	require.NoError(t, err)
	assert.True(t, allowed)

	assert.Equal(t, time.Minute, mr.TTL(rateLimitKeyPrefix+"10.0.0.1"))

	// the counter starts over once the window is gone
	mr.FastForward(time.Minute)
	allowed, err = store.Allow("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiterStore_failOpen(t *testing.T) {
	store, mr := newRedisStore(t, 1, time.Minute)
	store.timeout = 200 * time.Millisecond
	mr.Close()

	for i := 0; i < 3; i++ {
		allowed, err := store.Allow("10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestNewRateLimiterStore(t *testing.T) {
	conf := core.NewTestConfig()
	conf.RateLimit = core.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute}

	t.Run("memory", func(t *testing.T) {
		store, closeStore := NewRateLimiterStore(conf, core.NewNopLogger())
		defer func() { assert.NoError(t, closeStore()) }()
		_, ok := store.(*middleware.RateLimiterMemoryStore)
		assert.True(t, ok)

		for i := 0; i < 2; i++ {
			allowed, err := store.Allow("10.0.0.1")
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := store.Allow("10.0.0.1")
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		conf := *conf
		conf.RateLimit.RedisAddr = mr.Addr()
		store, closeStore := NewRateLimiterStore(&conf, core.NewNopLogger())
		defer func() { assert.NoError(t, closeStore()) }()
		_, ok := store.(*redisRateLimiterStore)
		assert.True(t, ok)
	})
}

func TestRateLimiter(t *testing.T) {
	store, _ := newRedisStore(t, 2, time.Minute)

	e := echo.New()
	e.Use(rateLimiter(store))
	handler := func(ctx echo.Context) error { return ctx.NoContent(http.StatusOK) }
	e.GET("/api/courses", handler)
	e.GET("/metrics", handler)

	get := func(path, ip string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("/api/courses", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, get("/api/courses", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, get("/api/courses", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, get("/api/courses", "10.0.0.2"))

	// only the API is limited
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get("/metrics", "10.0.0.1"))
	}
}
