package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/metrics"
)

func hit(r *gin.Engine, path string) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Code
}

func TestRateLimitMiddleware_AllowsUnderLimit(t *testing.T) {
	before := testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory"))

	r := gin.New()
	r.Use(RateLimitMiddleware(10, 2))
	r.GET("/ok", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	require.Equal(t, http.StatusOK, hit(r, "/ok"))
	require.Equal(t, http.StatusOK, hit(r, "/ok"))
	require.Equal(t, before+2, testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory")))
}

func TestRateLimitMiddleware_BlocksWhenExceeded(t *testing.T) {
	before := testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("memory"))

	r := gin.New()
	r.Use(RateLimitMiddleware(2, 1))
	r.GET("/limited", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	require.Equal(t, http.StatusOK, hit(r, "/limited"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/limited"))
	require.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("memory")))

	// one token is back after 0.5s
	time.Sleep(600 * time.Millisecond)
	require.Equal(t, http.StatusOK, hit(r, "/limited"))
}

func TestRateLimitMiddleware_UsesSubjectWhenPresent(t *testing.T) {
	r := gin.New()
	sub := "user-123"
	r.Use(func(c *gin.Context) {
		c.Set(ClaimsKey, map[string]interface{}{"sub": sub})
		c.Next()
	})
	r.Use(RateLimitMiddleware(0.5, 1))
	r.GET("/u", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	require.Equal(t, http.StatusOK, hit(r, "/u"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/u"))

	// same IP, different subject: separate bucket
	sub = "user-456"
	require.Equal(t, http.StatusOK, hit(r, "/u"))
}
