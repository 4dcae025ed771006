package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// MonitorRedis instruments r with tracing, metrics and debug logs tagged with the client's name.
func MonitorRedis(name string, r redis.UniversalClient) error {
	if err := redisotel.InstrumentTracing(r); err != nil {
		return fmt.Errorf("instrument tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(r); err != nil {
		return fmt.Errorf("instrument metrics: %w", err)
	}
	r.AddHook(redisLog{client: name})
	return nil
}

type redisLog struct {
	client string
}

func (l redisLog) DialHook(hook redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := hook(ctx, network, addr)
		if err != nil {
			slog.ErrorContext(ctx, "redis: dial failed", "client", l.client, "addr", addr, "error", err)
			return conn, err
		}
		slog.InfoContext(ctx, "redis: connected", "client", l.client, "network", network, "addr", addr)
		return conn, nil
	}
}

func (l redisLog) ProcessHook(hook redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmd)
		l.log(ctx, cmd.Name(), start, err)
		return err
	}
}

func (l redisLog) ProcessPipelineHook(hook redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmds)
		l.log(ctx, fmt.Sprintf("pipeline(%d)", len(cmds)), start, err)
		return err
	}
}

func (l redisLog) log(ctx context.Context, cmd string, start time.Time, err error) {
	// redis.Nil is a regular miss, not a failure.
	if err != nil && !errors.Is(err, redis.Nil) {
		slog.WarnContext(ctx, "redis: command failed", "client", l.client, "cmd", cmd, "error", err)
		return
	}
	slog.DebugContext(ctx, "redis: command done", "client", l.client, "cmd", cmd, "duration", time.Since(start))
}
