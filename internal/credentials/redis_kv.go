package credentials

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisKV implements KV on Redis. Keys are stored as "<prefix><key>" with no TTL;
// expiry stays the Store's concern so that the lazy sweep behaves the same on every backend.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV creates a Redis-backed KV. Prefix may be empty.
func NewRedisKV(client *redis.Client, prefix string) *RedisKV {
	if prefix == "" {
		prefix = "readinggroup:"
	}
	return &RedisKV{client: client, prefix: prefix}
}

func (r *RedisKV) key(k string) string {
	return r.prefix + k
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
