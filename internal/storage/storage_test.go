package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/config"
)

func TestMemoryStorage_PutGet(t *testing.T) {
	s := NewMemoryStorage("/media")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k1", strings.NewReader("hello"), 5, "text/plain"))

	rc, info, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))
	require.Equal(t, int64(5), info.Size)
	require.Equal(t, "text/plain", info.ContentType)

	u, err := s.PresignedURL(ctx, "k1", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "/media/k1?expires=60", u)
}

func TestMemoryStorage_Missing(t *testing.T) {
	s := NewMemoryStorage("")
	_, _, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.PresignedURL(context.Background(), "nope", time.Minute)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_SizeMismatch(t *testing.T) {
	s := NewMemoryStorage("")
	require.Error(t, s.Put(context.Background(), "k", strings.NewReader("abc"), 10, ""))
	// unknown size is accepted
	require.NoError(t, s.Put(context.Background(), "k", strings.NewReader("abc"), -1, ""))
}

func TestNewMinIOStorage_RequiresEndpoint(t *testing.T) {
	_, err := NewMinIOStorage(context.Background(), config.MinIOConfig{})
	require.Error(t, err)
}
