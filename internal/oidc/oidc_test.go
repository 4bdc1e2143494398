package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/config"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/middleware"
)

func TestIssuer(t *testing.T) {
	require.Equal(t, "", Issuer(config.KeycloakConfig{}))
	require.Equal(t, "", Issuer(config.KeycloakConfig{URL: "http://kc"}))
	require.Equal(t, "http://kc/realms/rg", Issuer(config.KeycloakConfig{URL: "http://kc/", Realm: "rg"}))
}

func discoveryServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"issuer":                 srv.URL,
				"authorization_endpoint": srv.URL + "/auth",
				"token_endpoint":         srv.URL + "/token",
				"jwks_uri":               srv.URL + "/certs",
				"id_token_signing_alg_values_supported": []string{"RS256"},
			})
		case "/certs":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"keys": []interface{}{}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewVerifier_DiscoversAndRejectsGarbage(t *testing.T) {
	srv := discoveryServer(t)
	v, err := NewVerifier(context.Background(), srv.URL, "readinggroup")
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "not-a-jwt")
	require.Error(t, err)
}

func TestNewVerifier_DiscoveryFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := NewVerifier(context.Background(), srv.URL, "x")
	require.Error(t, err)
}

type stubVerifier struct {
	ok  bool
	err error
}

type stubToken struct{}

func (stubToken) Claims(v interface{}) error { return nil }

func (s stubVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	if s.ok {
		return stubToken{}, nil
	}
	return nil, s.err
}

func TestChain(t *testing.T) {
	first := errors.New("first")
	last := errors.New("last")

	_, err := Chain{stubVerifier{err: first}, stubVerifier{err: last}}.Verify(context.Background(), "t")
	require.ErrorIs(t, err, last)

	tok, err := Chain{stubVerifier{err: first}, stubVerifier{ok: true}}.Verify(context.Background(), "t")
	require.NoError(t, err)
	require.NotNil(t, tok)

	_, err = Chain{}.Verify(context.Background(), "t")
	require.Error(t, err)
}
