package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/logger"
)

// Context keys set by AuthMiddleware.
const (
	ClaimsKey = "claims"
	TokenKey  = "token"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// Blacklist reports revoked access tokens.
type Blacklist interface {
	Contains(ctx context.Context, token string) (bool, error)
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier.
// bl may be nil.
func AuthMiddleware(ver Verifier, bl Blacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		// Expect 'Bearer <token>'
		var token string
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		if bl != nil {
			revoked, err := bl.Contains(c.Request.Context(), token)
			if err != nil {
				logger.Errorf("blacklist lookup failed: %v", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "token revocation check failed"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
				return
			}
		}

		idToken, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
			return
		}

		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// RequireRole rejects authenticated callers whose role is not in roles with 403.
// It must run after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		for _, want := range roles {
			for _, have := range rolesOf(claims) {
				if have == want {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}

// Claims returns the verified claims, or nil outside AuthMiddleware.
func Claims(c *gin.Context) map[string]interface{} {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	cm, _ := v.(map[string]interface{})
	return cm
}

// Subject returns the "sub" claim.
func Subject(c *gin.Context) string {
	sub, _ := Claims(c)["sub"].(string)
	return sub
}

// rolesOf reads the dev backend "role" claim and Keycloak's realm_access.roles.
func rolesOf(claims map[string]interface{}) []string {
	var out []string
	if r, ok := claims["role"].(string); ok && r != "" {
		out = append(out, r)
	}
	if ra, ok := claims["realm_access"].(map[string]interface{}); ok {
		if list, ok := ra["roles"].([]interface{}); ok {
			for _, r := range list {
				if s, ok := r.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
