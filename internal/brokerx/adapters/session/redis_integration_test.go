//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/adapters/session"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisRevocationList(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	l := session.NewRedisRevocationList(client)
	require.NoError(t, l.Ping(ctx))

	ok, err := l.IsRevoked(ctx, "sess-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, l.Revoke(ctx, "sess-1", time.Second))
	ok, err = l.IsRevoked(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		ok, err := l.IsRevoked(ctx, "sess-1")
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)
}
