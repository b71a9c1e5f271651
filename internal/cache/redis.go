// Package cache holds the process Redis client and the cache-aside helpers
// the services use for community details, popular lists and trending posts.
// Every helper degrades to a no-op when Redis is not configured.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pettit/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

var client *redis.Client

// failureHook counts failed commands. Cache misses are not failures.
type failureHook struct{}

func countFailure(name string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		middleware.RedisErrors.WithLabelValues(name).Inc()
	}
}

func (failureHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (failureHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countFailure(cmd.Name(), err)
		return err
	}
}

func (failureHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		countFailure("pipeline", err)
		return err
	}
}

// options accepts either a redis:// URL or a bare host:port.
func options(raw string) (*redis.Options, error) {
	if !strings.Contains(raw, "://") {
		return &redis.Options{Addr: raw}, nil
	}
	return redis.ParseURL(raw)
}

// Connect dials Redis at raw and verifies it answers PING.
func Connect(ctx context.Context, raw string) (*redis.Client, error) {
	opts, err := options(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	rdb.AddHook(failureHook{})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// InitRedis connects the process client. On failure the client stays nil and
// the application runs without caching, rate limiting or realtime events.
func InitRedis(raw string) {
	rdb, err := Connect(context.Background(), raw)
	if err != nil {
		middleware.Logger.Warn("Redis unavailable, continuing without it", slog.String("error", err.Error()))
		client = nil
		return
	}
	client = rdb
	middleware.Logger.Info("Redis connected", slog.String("addr", rdb.Options().Addr))
}

// GetClient returns the process client, or nil.
func GetClient() *redis.Client {
	return client
}

// SetClient replaces the process client. Passing nil disables caching.
func SetClient(rdb *redis.Client) {
	if rdb != nil {
		rdb.AddHook(failureHook{})
	}
	client = rdb
}
