package oidc

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/config"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/middleware"
)

// Verifier checks Keycloak-issued access tokens
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// Issuer returns the realm issuer URL for cfg, or "" when Keycloak is not configured.
func Issuer(cfg config.KeycloakConfig) string {
	if cfg.URL == "" || cfg.Realm == "" {
		return ""
	}
	return strings.TrimRight(cfg.URL, "/") + "/realms/" + cfg.Realm
}

// NewVerifier discovers the provider at issuer and verifies tokens for clientID
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID, SkipClientIDCheck: clientID == ""})
	return &Verifier{verifier: verifier}, nil
}

// Verify implements middleware.Verifier
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}

// Chain tries each verifier in order and returns the first success.
type Chain []middleware.Verifier

func (c Chain) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	var last error
	for _, v := range c {
		tok, err := v.Verify(ctx, raw)
		if err == nil {
			return tok, nil
		}
		last = err
	}
	if last == nil {
		last = fmt.Errorf("no verifier configured")
	}
	return nil, last
}
