package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMonitorRedisLogsCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, MonitorRedis(client, logger))

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	_, err := client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Get(ctx, "k")
		p.Del(ctx, "k")
		return nil
	})
	require.NoError(t, err)

	out := buf.String()
	require.True(t, strings.Contains(out, `"cmd":"set"`), out)
	require.Contains(t, out, "redis: pipeline")
	require.Contains(t, out, "redis: dialed")
}
