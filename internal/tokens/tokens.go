package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/config"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/models"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/middleware"
)

// Claims carried by dev backend access tokens
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 access tokens
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an issuer from the JWT section of the config.
func NewIssuer(cfg config.JWTConfig) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Issuer{secret: []byte(cfg.Secret), ttl: ttl, now: time.Now}, nil
}

// TTL is the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue creates a signed access token for the user
func (i *Issuer) Issue(u *models.User) (string, error) {
	now := i.now()
	claims := Claims{
		Name: u.Username,
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString(i.secret)
}

// Parse validates signature and expiry and returns the claims.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

// Verify implements middleware.Verifier.
func (i *Issuer) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	c, err := i.Parse(raw)
	if err != nil {
		return nil, err
	}
	return claimsToken{c}, nil
}

type claimsToken struct{ c *Claims }

func (t claimsToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.c)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
