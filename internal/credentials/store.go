package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/logger"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/metrics"
)

// Options configures a Store. Zero values fall back to DefaultTTL, no skew and time.Now.
type Options struct {
	TTL  time.Duration
	Skew time.Duration
	Now  func() time.Time
}

// Store owns the Credential Bundle in a KV. It is the single write path
// (SetCredentials, ClearCredentials) and the single read path (ValidAccessToken)
// for authentication state. Storage failures never reach callers.
type Store struct {
	kv   KV
	ttl  time.Duration
	skew time.Duration
	now  func() time.Time
}

func NewStore(kv KV, opts Options) *Store {
	s := &Store{kv: kv, ttl: opts.TTL, skew: opts.Skew, now: opts.Now}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// TTL returns the configured access token lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// SetCredentials stores a fresh bundle with expiresAt = now + TTL.
// Keys are written one by one; on the first failure the error is logged and the
// remaining keys are left as they were.
func (s *Store) SetCredentials(ctx context.Context, access, refresh string) {
	expiresAt := s.now().Add(s.ttl).UnixMilli()
	writes := []struct {
		key string
		val interface{}
	}{
		{KeyAccessToken, access},
		{KeyRefreshToken, refresh},
		{KeyTokenExpiry, expiresAt},
	}
	for _, w := range writes {
		if err := s.put(ctx, w.key, w.val); err != nil {
			logger.Errorf("credentials: storing %s failed: %v", w.key, err)
			return
		}
	}
	logger.Debugf("credentials: stored token %s expiring at %s", logger.Redact(access), time.UnixMilli(expiresAt).UTC().Format(time.RFC3339))
}

// ClearCredentials removes the three bundle keys. Calling it on an empty store is a no-op.
func (s *Store) ClearCredentials(ctx context.Context) {
	for _, k := range []string{KeyAccessToken, KeyRefreshToken, KeyTokenExpiry} {
		if err := s.kv.Delete(ctx, k); err != nil {
			logger.Errorf("credentials: removing %s failed: %v", k, err)
		}
	}
}

// ValidAccessToken returns the stored access token, or "" when there is none,
// it cannot be read, or it has expired. An expired bundle is cleared as a side effect.
func (s *Store) ValidAccessToken(ctx context.Context) string {
	token, err := s.getString(ctx, KeyAccessToken)
	if err != nil {
		logger.Warnf("credentials: unreadable access token, treating as absent: %v", err)
		return ""
	}
	if token == "" {
		return ""
	}
	exp, ok, err := s.getExpiry(ctx)
	if err != nil {
		logger.Warnf("credentials: unreadable token expiry, treating as absent: %v", err)
		return ""
	}
	if ok && s.expired(exp) {
		logger.Infof("credentials: access token %s expired, clearing", logger.Redact(token))
		s.ClearCredentials(ctx)
		metrics.CredentialsCleared.WithLabelValues(metrics.ReasonExpired).Inc()
		return ""
	}
	return token
}

// Bundle reads the stored bundle without sweeping it. Unreadable fields are
// reported as absent.
func (s *Store) Bundle(ctx context.Context) (Bundle, State) {
	var b Bundle
	var err error
	if b.AccessToken, err = s.getString(ctx, KeyAccessToken); err != nil {
		return Bundle{}, StateAbsent
	}
	if b.RefreshToken, err = s.getString(ctx, KeyRefreshToken); err != nil {
		b.RefreshToken = ""
	}
	exp, ok, err := s.getExpiry(ctx)
	if err != nil {
		return Bundle{}, StateAbsent
	}
	if ok {
		b.ExpiresAt = exp
	}
	if b.AccessToken == "" {
		return b, StateAbsent
	}
	if ok && s.expired(exp) {
		return b, StateExpired
	}
	return b, StateValid
}

// RefreshToken returns the stored refresh token or ErrNotFound.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	r, err := s.getString(ctx, KeyRefreshToken)
	if err != nil {
		return "", err
	}
	if r == "" {
		return "", ErrNotFound
	}
	return r, nil
}

// SetProfile records the logged-in user's id and type next to the bundle.
func (s *Store) SetProfile(ctx context.Context, userID, userType string) {
	if userID != "" {
		if err := s.put(ctx, KeyUserID, userID); err != nil {
			logger.Errorf("credentials: storing %s failed: %v", KeyUserID, err)
		}
	}
	if userType != "" {
		if err := s.put(ctx, KeyUserType, userType); err != nil {
			logger.Errorf("credentials: storing %s failed: %v", KeyUserType, err)
		}
	}
}

// Profile returns the stored user id and type; missing or unreadable values are "".
func (s *Store) Profile(ctx context.Context) (userID, userType string) {
	userID, _ = s.getString(ctx, KeyUserID)
	userType, _ = s.getString(ctx, KeyUserType)
	return userID, userType
}

// ClearProfile removes the user id and type.
func (s *Store) ClearProfile(ctx context.Context) {
	for _, k := range []string{KeyUserID, KeyUserType} {
		if err := s.kv.Delete(ctx, k); err != nil {
			logger.Errorf("credentials: removing %s failed: %v", k, err)
		}
	}
}

// ExpiresWithin reports whether a valid bundle will expire within d of now.
func (s *Store) ExpiresWithin(ctx context.Context, d time.Duration) bool {
	b, st := s.Bundle(ctx)
	if st != StateValid || b.ExpiresAt == 0 {
		return false
	}
	return s.now().Add(d).UnixMilli() >= b.ExpiresAt-s.skew.Milliseconds()
}

func (s *Store) expired(expiresAt int64) bool {
	return s.now().UnixMilli() >= expiresAt-s.skew.Milliseconds()
}

func (s *Store) put(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, b)
}

func (s *Store) getString(ctx context.Context, key string) (string, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) getExpiry(ctx context.Context) (int64, bool, error) {
	raw, ok, err := s.kv.Get(ctx, KeyTokenExpiry)
	if err != nil {
		return 0, false, fmt.Errorf("read %s: %w", KeyTokenExpiry, err)
	}
	if !ok {
		return 0, false, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, fmt.Errorf("decode %s: %w", KeyTokenExpiry, err)
	}
	return int64(v), true, nil
}
