package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/models"
)

func TestParseSeed(t *testing.T) {
	users, err := ParseSeed("admin:secret:admin:123456, editor:pw:editor")
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "1", users[0].ID)
	require.Equal(t, "123456", users[0].OTP)
	require.True(t, users[0].HasOTP())
	require.Equal(t, "2", users[1].ID)
	require.Equal(t, models.RoleEditor, users[1].Role)
	require.False(t, users[1].HasOTP())
}

func TestParseSeed_Invalid(t *testing.T) {
	for _, in := range []string{"", "admin", "admin:pw", "admin:pw:root", "a:b:admin:1:2", ":pw:admin"} {
		_, err := ParseSeed(in)
		require.Error(t, err, in)
	}
}

func TestAuthenticate(t *testing.T) {
	seed, err := ParseSeed("admin:secret:admin:123456,editor:pw:editor")
	require.NoError(t, err)
	svc := NewService(NewMemoryUserRepository(seed))
	ctx := context.Background()

	u, err := svc.Authenticate(ctx, "editor", "pw")
	require.NoError(t, err)
	require.Equal(t, "2", u.ID)

	_, err = svc.Authenticate(ctx, "editor", "nope")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "ghost", "pw")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyOTP(t *testing.T) {
	seed, err := ParseSeed("admin:secret:admin:123456,editor:pw:editor")
	require.NoError(t, err)
	svc := NewService(NewMemoryUserRepository(seed))
	ctx := context.Background()

	u, err := svc.VerifyOTP(ctx, "1", "123456")
	require.NoError(t, err)
	require.Equal(t, "admin", u.Username)

	_, err = svc.VerifyOTP(ctx, "1", "000000")
	require.ErrorIs(t, err, ErrInvalidOTP)
	// accounts without a second factor never pass OTP verification
	_, err = svc.VerifyOTP(ctx, "2", "")
	require.ErrorIs(t, err, ErrInvalidOTP)
}

func TestRepositoryReturnsCopies(t *testing.T) {
	seed, err := ParseSeed("editor:pw:editor")
	require.NoError(t, err)
	repo := NewMemoryUserRepository(seed)
	u, err := repo.GetByUsername(context.Background(), "editor")
	require.NoError(t, err)
	u.Role = models.RoleAdmin

	again, err := repo.GetByID(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, models.RoleEditor, again.Role)
}
