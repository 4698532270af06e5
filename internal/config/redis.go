package config

// Redis backs the rate limiter and the response cache.  Both degrade to
// pass-through middleware when the client is nil, so a missing Redis never
// stops the server.

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection parameters.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	TLS      bool   `toml:"tls"`
}

// applyEnv reads:
//
//	REDIS_ENABLED – turn caching and rate limiting on
//	REDIS_HOST and REDIS_PORT – hostname and port (take precedence over REDIS_ADDR)
//	REDIS_ADDR – host:port shorthand
//	REDIS_PASSWORD – optional password
//	REDIS_DB – database number
//	REDIS_TLS – enable TLS when "true" or "1"
func (r *RedisConfig) applyEnv() {
	r.Enabled = envBool("REDIS_ENABLED", r.Enabled)
	r.Addr = envStr("REDIS_ADDR", r.Addr)
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		r.Addr = host + ":" + port
	}
	r.Password = envStr("REDIS_PASSWORD", r.Password)
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			r.DB = n
		}
	}
	if v := os.Getenv("REDIS_TLS"); v != "" {
		r.TLS = strings.EqualFold(v, "true") || v == "1"
	}
}

// NewRedisClient connects to Redis and pings it with a short timeout.  It
// returns nil when Redis is disabled or unreachable; callers then run
// without caching and rate limiting.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
