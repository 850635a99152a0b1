// Package redis holds the optional Redis layer: shared sessions and the reputation verdict cache.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// NewClient parses redisURL, attaches the metrics hook when observer is set
// and the circuit breaker, then pings the server once.
func NewClient(ctx context.Context, redisURL string, observer OpObserver) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if observer != nil {
		rdb.AddHook(NewMetricsHook(observer))
	}
	rdb.AddHook(NewBreakerHook())

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
