package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "session:"

// RedisRepository keeps each session as a JSON value under prefix+refreshToken.
// The key TTL follows ExpiresAt so Redis evicts sessions on its own.
type RedisRepository struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisRepository{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisRepository) key(refresh string) string { return r.prefix + refresh }

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("sessions: session for user %s is already expired", s.UserID)
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	// NX: refresh tokens are random, a collision means something is wrong
	ok, err := r.client.SetNX(ctx, r.key(s.RefreshToken), payload, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("sessions: refresh token already in use")
	}
	return nil
}

func (r *RedisRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	payload, err := r.client.Get(ctx, r.key(refresh)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, err
	}
	s := new(Session)
	if err := json.Unmarshal(payload, s); err != nil {
		return nil, fmt.Errorf("sessions: decode %s: %w", r.key(refresh), err)
	}
	return s, nil
}

func (r *RedisRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	return r.client.Del(ctx, r.key(refresh)).Err()
}
