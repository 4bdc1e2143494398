package tokens

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/config"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/models"
)

func newIssuer(t *testing.T, secret string, ttl time.Duration) *Issuer {
	t.Helper()
	i, err := NewIssuer(config.JWTConfig{Secret: secret, AccessTokenTTL: ttl})
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}
	return i
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	if _, err := NewIssuer(config.JWTConfig{}); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func TestIssue_ValidAndClaims(t *testing.T) {
	i := newIssuer(t, "test-secret-32-bytes-should-be-long-enough", 2*time.Minute)
	u := &models.User{ID: "7", Username: "editor", Role: models.RoleEditor}

	tokenStr, err := i.Issue(u)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	claims, err := i.Parse(tokenStr)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if claims.Subject != "7" || claims.Role != models.RoleEditor || claims.Name != "editor" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatalf("expected a token id")
	}

	// two tokens for the same user differ
	other, _ := i.Issue(u)
	if other == tokenStr {
		t.Fatalf("expected distinct tokens")
	}
}

func TestParse_Expired(t *testing.T) {
	i := newIssuer(t, "another-secret-32-bytes-longgggg", time.Minute)
	base := time.Now()
	i.now = func() time.Time { return base }
	tokenStr, err := i.Issue(&models.User{ID: "2"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	i.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := i.Parse(tokenStr); err == nil {
		t.Fatalf("expected parse to fail after expiry")
	}
}

func TestParse_WrongSecretFails(t *testing.T) {
	i := newIssuer(t, "secret-one-32-bytes-xxxxxxxxxxxxxxxx", time.Minute)
	tokenStr, err := i.Issue(&models.User{ID: "3"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	other := newIssuer(t, "different-secret-xxxxxxxxxxxxxxxx", time.Minute)
	if _, err := other.Parse(tokenStr); err == nil {
		t.Fatalf("expected parse to fail with wrong secret")
	}
}

func TestParse_Malformed(t *testing.T) {
	i := newIssuer(t, "x", time.Minute)
	if _, err := i.Parse("not.a.jwt"); err == nil {
		t.Fatalf("expected parse to fail for malformed token")
	}
}

// Rejected when alg=none (unsigned token)
func TestParse_AlgNoneRejected(t *testing.T) {
	i := newIssuer(t, "x", time.Minute)
	headerEnc := new(jwt.Token).EncodeSegment([]byte(`{"alg":"none"}`))
	payloadEnc := new(jwt.Token).EncodeSegment([]byte(`{"sub":"u-none","exp":9999999999}`))
	if _, err := i.Parse(headerEnc + "." + payloadEnc + "."); err == nil {
		t.Fatalf("expected parse to reject alg=none token")
	}
}

// Tampering with payload must fail signature verification
func TestParse_TamperedPayload(t *testing.T) {
	i := newIssuer(t, "tamper-test-secret-32-bytes-xxxxxxx", 5*time.Minute)
	tokenStr, err := i.Issue(&models.User{ID: "5", Role: models.RoleViewer})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token parts")
	}
	payloadBytes, _ := jwt.NewParser().DecodeSegment(parts[1])
	parts[1] = new(jwt.Token).EncodeSegment([]byte(strings.Replace(string(payloadBytes), models.RoleViewer, models.RoleAdmin, 1)))
	if _, err := i.Parse(strings.Join(parts, ".")); err == nil {
		t.Fatalf("expected signature verification to fail for tampered token")
	}
}

func TestVerify_ExposesClaimsMap(t *testing.T) {
	i := newIssuer(t, "verify-secret", time.Minute)
	tokenStr, err := i.Issue(&models.User{ID: "9", Username: "admin", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	tok, err := i.Verify(context.Background(), tokenStr)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		t.Fatalf("Claims error: %v", err)
	}
	if claims["sub"] != "9" || claims["role"] != "admin" {
		t.Fatalf("unexpected claims map: %v", claims)
	}
	if _, ok := claims["exp"].(float64); !ok {
		t.Fatalf("expected numeric exp, got %T", claims["exp"])
	}
}
