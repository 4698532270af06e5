package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-catalog/internal/config"
	"github.com/iliyamo/movie-catalog/internal/queue"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{http.MethodGet: true},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "movies:cache",
	}
}

func get(e *echo.Echo, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRedisCacheHitAndPurge(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := cacheConfig()
	purger := NewCachePurger(cfg, rdb, zerolog.Nop())
	require.NotNil(t, purger)

	title := "Dune"
	e := echo.New()
	e.GET("/movies", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"title": title})
	}, NewRedisCache(cfg, rdb))

	rec := get(e, "/movies")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"title":"Dune"}`, rec.Body.String())

	title = "Arrival"
	rec = get(e, "/movies")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"title":"Dune"}`, rec.Body.String())
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))

	require.NoError(t, purger.Notify(context.Background(), queue.NewMovieEvent(queue.ActionUpdated, 1, "Arrival", "")))

	rec = get(e, "/movies")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"title":"Arrival"}`, rec.Body.String())
}

func TestRedisCacheDropsResponseBuiltBeforeAPurge(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := cacheConfig()
	purger := NewCachePurger(cfg, rdb, zerolog.Nop())

	stored := 0
	e := echo.New()
	e.GET("/movies", func(c echo.Context) error {
		// The listing is read first; a write commits and purges before
		// the response reaches the cache.
		body := map[string]int{"count": stored}
		if stored == 0 {
			stored = 1
			_, err := purger.Purge(context.Background())
			require.NoError(t, err)
		}
		return c.JSON(http.StatusOK, body)
	}, NewRedisCache(cfg, rdb))

	rec := get(e, "/movies")
	assert.JSONEq(t, `{"count":0}`, rec.Body.String())

	rec = get(e, "/movies")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"count":1}`, rec.Body.String())
}

func TestRedisCacheSkipsErrors(t *testing.T) {
	_, rdb := newRedis(t)
	calls := 0
	e := echo.New()
	e.GET("/movies/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Movie not found"})
	}, NewRedisCache(cacheConfig(), rdb))

	get(e, "/movies/9")
	rec := get(e, "/movies/9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestCachePurgerKeepsForeignKeys(t *testing.T) {
	mr, rdb := newRedis(t)
	require.NoError(t, mr.Set("movies:cache:0:aa", "x"))
	require.NoError(t, mr.Set("movies:cache:0:bb", "y"))
	require.NoError(t, mr.Set("movies:rl:ip:1", "z"))

	purger := NewCachePurger(cacheConfig(), rdb, zerolog.Nop())
	n, err := purger.Purge(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.False(t, mr.Exists("movies:cache:0:aa"))
	assert.True(t, mr.Exists("movies:rl:ip:1"))
	gen, err := mr.Get(generationKey("movies:cache"))
	require.NoError(t, err)
	assert.Equal(t, "1", gen)
}

func TestTokenBucketBlocksWhenDrained(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "movies:rl",
	}
	e := echo.New()
	e.GET("/movies", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, NewTokenBucket(cfg, rdb, zerolog.Nop()))

	first := get(e, "/movies")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, get(e, "/movies").Code)

	blocked := get(e, "/movies")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "0", blocked.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), "too_many_requests")
}

func TestTokenBucketFailsOpenWhenRedisGoesAway(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, Prefix: "movies:rl"}
	e := echo.New()
	e.GET("/movies", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, NewTokenBucket(cfg, rdb, zerolog.Nop()))

	mr.Close()
	assert.Equal(t, http.StatusOK, get(e, "/movies").Code)
	assert.Equal(t, http.StatusOK, get(e, "/movies").Code)
}
