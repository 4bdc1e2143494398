package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds client, CLI and devbackend configuration
type Config struct {
	API         APIConfig
	Credentials CredentialsConfig
	Redis       RedisConfig
	MongoDB     MongoDBConfig
	Log         LogConfig
	Server      ServerConfig
	JWT         JWTConfig
	Keycloak    KeycloakConfig
	RateLimit   RateLimitConfig
	MinIO       MinIOConfig
}

type APIConfig struct {
	BaseURL        string
	DefaultLocale  string
	RequestTimeout time.Duration
	RenewalPolicy  string
	RenewWindow    time.Duration
}

type CredentialsConfig struct {
	Backend    string // file | memory | redis | mongo
	File       string
	Prefix     string
	TokenTTL   time.Duration
	ExpirySkew time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Users        string
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type KeycloakConfig struct {
	URL      string
	Realm    string
	ClientID string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// RedisAddr returns host:port, or "" when Redis is not configured.
func (c RedisConfig) RedisAddr() string {
	if c.Host == "" {
		return ""
	}
	port := c.Port
	if port == "" {
		port = "6379"
	}
	return c.Host + ":" + port
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("API_BASE_URL", "http://localhost:5001")
	v.SetDefault("DEFAULT_LOCALE", "en")
	v.SetDefault("REQUEST_TIMEOUT", 0)
	v.SetDefault("RENEWAL_POLICY", "none")
	v.SetDefault("RENEW_WINDOW", 300)
	v.SetDefault("CREDENTIAL_STORE", "file")
	v.SetDefault("CREDENTIAL_FILE", ".readinggroup/credentials.json")
	v.SetDefault("CREDENTIAL_PREFIX", "readinggroup:")
	v.SetDefault("TOKEN_TTL", 360)
	v.SetDefault("TOKEN_EXPIRY_SKEW", 0)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MONGODB_DATABASE", "readinggroup")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SERVER_PORT", "5001")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("DEV_USERS", "admin:admin:admin,editor:editor:editor")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	v.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("MINIO_BUCKET", "readinggroup-media")

	cfg := &Config{
		API: APIConfig{
			BaseURL:        strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
			DefaultLocale:  v.GetString("DEFAULT_LOCALE"),
			RequestTimeout: time.Duration(v.GetInt("REQUEST_TIMEOUT")) * time.Second,
			RenewalPolicy:  strings.ToLower(v.GetString("RENEWAL_POLICY")),
			RenewWindow:    time.Duration(v.GetInt("RENEW_WINDOW")) * time.Second,
		},
		Credentials: CredentialsConfig{
			Backend:    strings.ToLower(v.GetString("CREDENTIAL_STORE")),
			File:       v.GetString("CREDENTIAL_FILE"),
			Prefix:     v.GetString("CREDENTIAL_PREFIX"),
			TokenTTL:   time.Duration(v.GetInt("TOKEN_TTL")) * time.Minute,
			ExpirySkew: time.Duration(v.GetInt("TOKEN_EXPIRY_SKEW")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Users:        v.GetString("DEV_USERS"),
		},
		JWT: JWTConfig{
			Secret:          v.GetString("JWT_SECRET"),
			AccessTokenTTL:  time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(v.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		Keycloak: KeycloakConfig{
			URL:      v.GetString("KEYCLOAK_URL"),
			Realm:    v.GetString("KEYCLOAK_REALM"),
			ClientID: v.GetString("KEYCLOAK_CLIENT_ID"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the client cannot act on.
func (c *Config) Validate() error {
	switch c.Credentials.Backend {
	case "file", "memory", "redis", "mongo":
	default:
		return fmt.Errorf("config: unknown CREDENTIAL_STORE %q", c.Credentials.Backend)
	}
	switch c.API.RenewalPolicy {
	case "none", "on401", "before_expiry":
	default:
		return fmt.Errorf("config: unknown RENEWAL_POLICY %q", c.API.RenewalPolicy)
	}
	if c.Credentials.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive")
	}
	if c.Credentials.Backend == "redis" && c.Redis.Host == "" {
		return fmt.Errorf("config: CREDENTIAL_STORE=redis requires REDIS_HOST")
	}
	if c.Credentials.Backend == "mongo" && c.MongoDB.URI == "" {
		return fmt.Errorf("config: CREDENTIAL_STORE=mongo requires MONGODB_URI")
	}
	if c.API.DefaultLocale == "" {
		c.API.DefaultLocale = "en"
	}
	return nil
}
