package redis

import (
	"context"
	"errors"
	"net"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// OpObserver receives one call per Redis command or pipeline.
type OpObserver interface {
	ObserveRedisOp(operation string, duration time.Duration, err error)
}

// MetricsHook implements goredis.Hook and reports every command to an OpObserver.
// A goredis.Nil reply counts as success.
type MetricsHook struct {
	observer OpObserver
}

var _ goredis.Hook = (*MetricsHook)(nil)

func NewMetricsHook(observer OpObserver) *MetricsHook {
	return &MetricsHook{observer: observer}
}

func (h *MetricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		h.observer.ObserveRedisOp("dial", time.Since(start), err)
		return conn, err
	}
}

func (h *MetricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observer.ObserveRedisOp(cmd.Name(), time.Since(start), nilAsSuccess(err))
		return err
	}
}

func (h *MetricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.observer.ObserveRedisOp("pipeline", time.Since(start), nilAsSuccess(err))
		return err
	}
}

func nilAsSuccess(err error) error {
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	return err
}
