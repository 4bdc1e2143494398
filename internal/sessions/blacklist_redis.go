package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist records revoked access tokens until they would have expired anyway.
type Blacklist interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	Contains(ctx context.Context, token string) (bool, error)
}

// RedisBlacklist stores revoked tokens under "blacklist:access:<token>" with a TTL
type RedisBlacklist struct {
	client *redis.Client
}

func NewRedisBlacklist(c *redis.Client) *RedisBlacklist { return &RedisBlacklist{client: c} }

func (b *RedisBlacklist) key(token string) string { return "blacklist:access:" + token }

func (b *RedisBlacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, b.key(token), "1", ttl).Err()
}

func (b *RedisBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	exists, err := b.client.Exists(ctx, b.key(token)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// MemoryBlacklist is the in-process Blacklist
type MemoryBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{entries: map[string]time.Time{}, now: time.Now}
}

func (b *MemoryBlacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[token] = b.now().Add(ttl)
	return nil
}

func (b *MemoryBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.entries[token]
	if !ok {
		return false, nil
	}
	if !b.now().Before(until) {
		delete(b.entries, token)
		return false, nil
	}
	return true, nil
}
