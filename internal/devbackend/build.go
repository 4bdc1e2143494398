package devbackend

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/config"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/database"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/oidc"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/sessions"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/storage"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/tokens"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/users"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/logger"
)

// Build wires Deps from configuration. Optional backends (Redis, MongoDB,
// MinIO, Keycloak) are used when configured and reachable; otherwise the
// in-memory variants are used. The returned func releases connections.
func Build(ctx context.Context, cfg *config.Config) (*Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	seed, err := users.ParseSeed(cfg.Server.Users)
	if err != nil {
		return nil, nil, fmt.Errorf("DEV_USERS: %w", err)
	}

	jwtCfg := cfg.JWT
	if jwtCfg.Secret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, nil, err
		}
		jwtCfg.Secret = hex.EncodeToString(b)
		logger.Warn("JWT_SECRET not set, using a random per-process secret")
	}
	issuer, err := tokens.NewIssuer(jwtCfg)
	if err != nil {
		return nil, nil, err
	}

	d := &Deps{
		Users:      users.NewService(users.NewMemoryUserRepository(seed)),
		Issuer:     issuer,
		RateLimit:  cfg.RateLimit,
		RefreshTTL: cfg.JWT.RefreshTokenTTL,
	}

	if addr := cfg.Redis.RedisAddr(); addr != "" {
		rc := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis %s unreachable, falling back to memory: %v", addr, err)
			_ = rc.Close()
		} else {
			logger.Infof("using redis %s for sessions and token blacklist", addr)
			closers = append(closers, func() { _ = rc.Close() })
			d.Redis = rc
			d.Sessions = sessions.NewService(sessions.NewRedisRepository(rc, "session:"))
			d.Blacklist = sessions.NewRedisBlacklist(rc)
		}
	}

	if d.Sessions == nil && cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			logger.Warnf("mongodb unreachable, falling back to memory sessions: %v", err)
		} else {
			logger.Infof("using mongodb for sessions")
			closers = append(closers, func() { _ = client.Disconnect(context.Background()) })
			col := client.Database(cfg.MongoDB.Database).Collection("sessions")
			if err := database.EnsureExpiryIndex(ctx, col, "expiresAt"); err != nil {
				logger.Warnf("sessions: %v", err)
			}
			d.Sessions = sessions.NewService(sessions.NewMongoRepository(col))
		}
	}
	if d.Sessions == nil {
		d.Sessions = sessions.NewService(sessions.NewMemoryRepository())
	}
	if d.Blacklist == nil {
		d.Blacklist = sessions.NewMemoryBlacklist()
	}

	if cfg.MinIO.Endpoint != "" {
		blobs, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		logger.Infof("using minio %s bucket %s for media", cfg.MinIO.Endpoint, cfg.MinIO.Bucket)
		d.Blobs = blobs
	} else {
		d.Blobs = storage.NewMemoryStorage("/api/v1/media")
	}

	if iss := oidc.Issuer(cfg.Keycloak); iss != "" {
		kc, err := oidc.NewVerifier(ctx, iss, cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			logger.Infof("accepting keycloak tokens from %s", iss)
			d.Verifier = oidc.Chain{issuer, kc}
		}
	}

	return d, cleanup, nil
}
