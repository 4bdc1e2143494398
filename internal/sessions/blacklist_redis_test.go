package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisBlacklist(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	bl := NewRedisBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	ctx := context.Background()
	token := "access-token-1"

	require.NoError(t, bl.Add(ctx, token, 2*time.Second))
	ok, err := bl.Contains(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)

	m.FastForward(3 * time.Second)

	ok, err = bl.Contains(ctx, token)
	require.NoError(t, err)
	require.False(t, ok)

	// a non-positive ttl is a no-op
	require.NoError(t, bl.Add(ctx, "already-expired", 0))
	ok, err = bl.Contains(ctx, "already-expired")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryBlacklist(t *testing.T) {
	bl := NewMemoryBlacklist()
	base := time.Now()
	bl.now = func() time.Time { return base }
	ctx := context.Background()

	require.NoError(t, bl.Add(ctx, "t1", time.Minute))
	ok, err := bl.Contains(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)

	bl.now = func() time.Time { return base.Add(time.Minute) }
	ok, err = bl.Contains(ctx, "t1")
	require.NoError(t, err)
	require.False(t, ok)
}
