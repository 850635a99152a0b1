package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerHook_OpensAfterConsecutiveFailures(t *testing.T) {
	hook := newBreakerHook(3, time.Minute)

	calls := 0
	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		calls++
		return errors.New("connection refused")
	})

	ctx := context.Background()
	for range 3 {
		assert.Error(t, process(ctx, goredis.NewStringCmd(ctx, "get", "reputation:1.2.3.4")))
	}
	assert.Equal(t, circuitbreaker.OpenState, hook.State())

	cmd := goredis.NewStringCmd(ctx, "get", "reputation:1.2.3.4")
	err := process(ctx, cmd)

	require.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, cmd.Err(), circuitbreaker.ErrOpen)
	assert.Equal(t, 3, calls, "open breaker must not reach redis")
}

func TestBreakerHook_NilReplyIsSuccess(t *testing.T) {
	hook := newBreakerHook(2, time.Minute)

	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		return goredis.Nil
	})

	ctx := context.Background()
	for range 5 {
		assert.ErrorIs(t, process(ctx, goredis.NewStringCmd(ctx, "get", "missing")), goredis.Nil)
	}
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestBreakerHook_SuccessResetsFailureCount(t *testing.T) {
	hook := newBreakerHook(2, time.Minute)

	fail := true
	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		if fail {
			return errors.New("timeout")
		}
		return nil
	})

	ctx := context.Background()
	_ = process(ctx, goredis.NewStringCmd(ctx, "get", "k"))
	fail = false
	require.NoError(t, process(ctx, goredis.NewStringCmd(ctx, "get", "k")))
	fail = true
	_ = process(ctx, goredis.NewStringCmd(ctx, "get", "k"))

	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestBreakerHook_PipelineRejectedWhenOpen(t *testing.T) {
	hook := newBreakerHook(1, time.Minute)

	pipeline := hook.ProcessPipelineHook(func(context.Context, []goredis.Cmder) error {
		return errors.New("broken pipe")
	})

	ctx := context.Background()
	assert.Error(t, pipeline(ctx, nil))
	assert.ErrorIs(t, pipeline(ctx, nil), circuitbreaker.ErrOpen)
}
