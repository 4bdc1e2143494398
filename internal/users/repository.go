package users

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/models"
)

// UserRepository looks up dev backend accounts
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// MemoryUserRepository is a fixed in-process account table
type MemoryUserRepository struct {
	mu     sync.RWMutex
	byName map[string]*models.User
	byID   map[string]*models.User
}

// NewMemoryUserRepository indexes the given users by name and id.
func NewMemoryUserRepository(users []*models.User) *MemoryUserRepository {
	r := &MemoryUserRepository{byName: map[string]*models.User{}, byID: map[string]*models.User{}}
	for _, u := range users {
		r.byName[u.Username] = u
		r.byID[u.ID] = u
	}
	return r
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byName[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// ParseSeed reads the DEV_USERS format: comma separated name:password:role[:otp].
// Ids are assigned in order starting at 1.
func ParseSeed(s string) ([]*models.User, error) {
	var out []*models.User
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 3 || len(parts) > 4 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("invalid user entry %q (want name:password:role[:otp])", entry)
		}
		switch parts[2] {
		case models.RoleAdmin, models.RoleEditor, models.RoleViewer:
		default:
			return nil, fmt.Errorf("invalid role %q for user %s", parts[2], parts[0])
		}
		u := &models.User{
			ID:       strconv.Itoa(len(out) + 1),
			Username: parts[0],
			Password: parts[1],
			Role:     parts[2],
		}
		if len(parts) == 4 {
			u.OTP = parts[3]
		}
		out = append(out, u)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no users configured")
	}
	return out, nil
}
