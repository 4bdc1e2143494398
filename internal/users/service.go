package users

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidOTP         = errors.New("invalid one-time code")
)

// Service encapsulates login checks
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// Authenticate checks the first factor. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil || !equal(u.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// VerifyOTP checks the second factor for userID.
func (s *Service) VerifyOTP(ctx context.Context, userID, code string) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.HasOTP() || !equal(u.OTP, code) {
		return nil, ErrInvalidOTP
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
