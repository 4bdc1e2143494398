package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/logger"
)

// Service wraps repository operations with expiry handling
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(r Repository) *Service { return &Service{repo: r, now: time.Now} }

// CreateSession stores a new refresh session for userID and returns the refresh token
func (s *Service) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	r := hex.EncodeToString(b)
	now := s.now().UTC()
	sess := &Session{
		RefreshToken: r,
		UserID:       userID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return r, nil
}

// ValidateRefresh returns the session if refresh token is valid and not expired.
// Expired sessions are removed and reported as missing.
func (s *Service) ValidateRefresh(ctx context.Context, refresh string) (*Session, error) {
	sess, err := s.repo.GetByRefresh(ctx, refresh)
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.Expired(s.now()) {
		if err := s.repo.DeleteByRefresh(ctx, refresh); err != nil {
			logger.Warnf("sessions: removing expired session failed: %v", err)
		}
		return nil, nil
	}
	return sess, nil
}

func (s *Service) DeleteRefresh(ctx context.Context, refresh string) error {
	return s.repo.DeleteByRefresh(ctx, refresh)
}
