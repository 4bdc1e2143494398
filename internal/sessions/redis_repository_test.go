package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T, prefix string) (*RedisRepository, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client, prefix), m
}

func TestRedisRepository_RoundTrip(t *testing.T) {
	repo, m := newRedisRepo(t, "rg:session:")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	s := &Session{RefreshToken: "r1", UserID: "3", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}

	require.NoError(t, repo.Create(ctx, s))
	assert.True(t, m.Exists("rg:session:r1"))
	assert.InDelta(t, time.Minute.Seconds(), m.TTL("rg:session:r1").Seconds(), 2)

	got, err := repo.GetByRefresh(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "3", got.UserID)
	assert.True(t, got.ExpiresAt.Equal(s.ExpiresAt))

	require.Error(t, repo.Create(ctx, s), "same refresh token twice")

	require.NoError(t, repo.DeleteByRefresh(ctx, "r1"))
	got, err = repo.GetByRefresh(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got)
	// deleting a missing key is fine
	require.NoError(t, repo.DeleteByRefresh(ctx, "r1"))
}

func TestRedisRepository_EvictsAtExpiry(t *testing.T) {
	repo, m := newRedisRepo(t, "")
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.Create(ctx, &Session{RefreshToken: "r2", UserID: "4", ExpiresAt: now.Add(10 * time.Second)}))
	assert.True(t, m.Exists("session:r2"))

	m.FastForward(11 * time.Second)
	got, err := repo.GetByRefresh(ctx, "r2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisRepository_RejectsExpiredSession(t *testing.T) {
	repo, m := newRedisRepo(t, "")
	err := repo.Create(context.Background(), &Session{RefreshToken: "old", UserID: "5", ExpiresAt: time.Now().Add(-time.Second)})
	assert.Error(t, err)
	assert.False(t, m.Exists("session:old"))
}

func TestRedisRepository_CorruptValue(t *testing.T) {
	repo, m := newRedisRepo(t, "")
	require.NoError(t, m.Set("session:bad", "{not json"))
	_, err := repo.GetByRefresh(context.Background(), "bad")
	assert.Error(t, err)
}
