// Package devbackend assembles a local stand-in for the readinggroup backend:
// the auth endpoints, a role-gated probe and a multipart upload target.
package devbackend

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/handlers"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/config"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/sessions"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/storage"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/tokens"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/users"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/logger"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/middleware"
)

// Deps are the services the router serves. Verifier defaults to Issuer and
// Gatherer to the default Prometheus registry.
type Deps struct {
	Users      *users.Service
	Sessions   *sessions.Service
	Blacklist  sessions.Blacklist
	Issuer     *tokens.Issuer
	Verifier   middleware.Verifier
	Blobs      storage.Blobs
	Redis      *redis.Client
	RateLimit  config.RateLimitConfig
	RefreshTTL time.Duration
	Gatherer   prometheus.Gatherer
}

// NewRouter builds the gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Verifier == nil {
		d.Verifier = d.Issuer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLog(), cors())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{"redis": true}
		if d.Redis != nil {
			deps["redis"] = d.Redis.Ping(c.Request.Context()).Err() == nil
		}
		status, code := "ready", http.StatusOK
		for _, ok := range deps {
			if !ok {
				status, code = "not_ready", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status, "deps": deps})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	handlers.RegisterSwagger(r)

	// /auth is limited per client IP, /api/v1 per subject since it runs after auth
	limit := rateLimit(d)
	handlers.NewAuthHandler(d.Users, d.Sessions, d.Blacklist, d.Issuer, d.RefreshTTL).Register(r.Group("/", limit...))

	api := r.Group("/api/v1", append([]gin.HandlerFunc{middleware.AuthMiddleware(d.Verifier, d.Blacklist)}, limit...)...)
	handlers.NewAPIHandler(d.Users).Register(api)
	handlers.NewMediaHandler(d.Blobs).Register(api)
	return r
}

func rateLimit(d Deps) []gin.HandlerFunc {
	if !d.RateLimit.Enabled {
		return nil
	}
	if d.RateLimit.UseRedis && d.Redis != nil {
		win := time.Duration(d.RateLimit.WindowSeconds) * time.Second
		return []gin.HandlerFunc{middleware.RedisRateLimitMiddleware(d.Redis, d.RateLimit.RPS, d.RateLimit.Burst, win)}
	}
	return []gin.HandlerFunc{middleware.RateLimitMiddleware(d.RateLimit.RPS, d.RateLimit.Burst)}
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// cors sets permissive headers for local frontends and answers preflights.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Accept-Language, Authorization")
		h.Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
