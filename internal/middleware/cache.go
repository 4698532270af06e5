package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/movie-catalog/internal/config"
	"github.com/iliyamo/movie-catalog/internal/queue"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
	switch {
	case cw.limit <= 0:
		cw.buf.Write(b)
	case cw.size < cw.limit:
		remain := cw.limit - cw.size
		if int64(len(b)) <= remain {
			cw.buf.Write(b)
		} else {
			cw.buf.Write(b[:remain])
		}
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// generationKey names the counter CachePurger bumps on every change.  It
// sits outside the prefix:* pattern so a purge never deletes it.
func generationKey(prefix string) string { return prefix + "#gen" }

// currentGeneration reads the purge counter; a missing counter is 0.
func currentGeneration(ctx context.Context, rdb *redis.Client, prefix string) (int64, error) {
	gen, err := rdb.Get(ctx, generationKey(prefix)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// cacheKeyFrom builds a stable key honoring prefix and strategy.  The host
// always takes part: movie payloads embed absolute image URLs.  gen is the
// purge generation the request started in; entries of older generations
// are never read again.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context, gen int64) string {
	r := c.Request()
	parts := []string{"host", r.Host, "scheme", c.Scheme()}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		parts = append(parts, "route", c.Path(), "p", r.URL.Path)
	case "method_route":
		parts = append(parts, "method", r.Method, "route", c.Path(), "p", r.URL.Path)
	case "method_route_query":
		parts = append(parts, "method", r.Method, "route", c.Path(), "p", r.URL.Path, "q", r.URL.RawQuery)
	default: // "route_query"
		parts = append(parts, "route", c.Path(), "p", r.URL.Path, "q", r.URL.RawQuery)
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("%s:%d:%x", cfg.Prefix, gen, sum[:])
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:8+len(hdrJSON)], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	hdr := make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, hdr, bs[8+hlen:], true
}

// NewRedisCache serves cached 200 responses for the configured methods and
// stores misses with their headers, so clients see identical formatting.
// Writes invalidate entries through CachePurger, not here.  A response is
// only stored if no purge happened while it was being produced.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	maxBody := int64(cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}

			ctx := c.Request().Context()
			gen, err := currentGeneration(ctx, rdb, cfg.Prefix)
			if err != nil {
				return next(c)
			}
			key := cacheKeyFrom(cfg, c, gen)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, "Content-Length") {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					if len(body) > 0 {
						_, _ = c.Response().Write(body)
					}
					return nil
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}

			// Truncated bodies are not cached.
			if cw.status == http.StatusOK && (maxBody <= 0 || cw.size <= maxBody) {
				hdr := c.Response().Header().Clone()
				hdr.Del("X-Cache")
				sctx := context.WithoutCancel(ctx)
				if now, err := currentGeneration(sctx, rdb, cfg.Prefix); err != nil || now != gen {
					return nil
				}
				if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
					_ = rdb.SetEx(sctx, key, payload, ttl).Err()
				}
			}
			return nil
		}
	}
}

// CachePurger drops every cached response when a movie changes.  It is
// registered as a change notifier of the movie service.
type CachePurger struct {
	rdb    *redis.Client
	prefix string
	log    zerolog.Logger
}

// NewCachePurger returns nil when caching is off, so callers can skip it.
func NewCachePurger(cfg config.CacheConfig, rdb *redis.Client, log zerolog.Logger) *CachePurger {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	return &CachePurger{rdb: rdb, prefix: cfg.Prefix, log: log}
}

// Notify deletes all keys under the cache prefix.
func (p *CachePurger) Notify(ctx context.Context, ev queue.MovieEvent) error {
	n, err := p.Purge(ctx)
	if err != nil {
		return err
	}
	p.log.Debug().Int("keys", n).Str("action", ev.Action).Int64("movie_id", ev.MovieID).Msg("cache purged")
	return nil
}

// Purge bumps the generation, which hides every stored response at once,
// then removes the keys under the prefix and returns how many were found.
func (p *CachePurger) Purge(ctx context.Context) (int, error) {
	if err := p.rdb.Incr(ctx, generationKey(p.prefix)).Err(); err != nil {
		return 0, fmt.Errorf("bump cache generation: %w", err)
	}
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, p.prefix+":*", 200).Result()
		if err != nil {
			return total, fmt.Errorf("scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := p.rdb.Del(ctx, keys...).Err(); err != nil {
				return total, fmt.Errorf("delete cache keys: %w", err)
			}
			total += len(keys)
		}
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}
