package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CREDENTIAL_STORE", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:5001", cfg.API.BaseURL)
	require.Equal(t, "en", cfg.API.DefaultLocale)
	require.Equal(t, 6*time.Hour, cfg.Credentials.TokenTTL)
	require.Equal(t, "none", cfg.API.RenewalPolicy)
	require.Zero(t, cfg.API.RequestTimeout)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.org/")
	t.Setenv("CREDENTIAL_STORE", "redis")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("TOKEN_TTL", "30")
	t.Setenv("RENEWAL_POLICY", "ON401")
	t.Setenv("DEFAULT_LOCALE", "tr")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "https://api.example.org", cfg.API.BaseURL)
	require.Equal(t, "localhost:6379", cfg.Redis.RedisAddr())
	require.Equal(t, 30*time.Minute, cfg.Credentials.TokenTTL)
	require.Equal(t, "on401", cfg.API.RenewalPolicy)
	require.Equal(t, "tr", cfg.API.DefaultLocale)
}

func TestValidate_Rejects(t *testing.T) {
	base := func() *Config {
		return &Config{
			API:         APIConfig{RenewalPolicy: "none", DefaultLocale: "en"},
			Credentials: CredentialsConfig{Backend: "memory", TokenTTL: time.Hour},
		}
	}

	c := base()
	c.Credentials.Backend = "cookie"
	require.Error(t, c.Validate())

	c = base()
	c.API.RenewalPolicy = "always"
	require.Error(t, c.Validate())

	c = base()
	c.Credentials.Backend = "mongo"
	require.Error(t, c.Validate())

	c = base()
	c.API.DefaultLocale = ""
	require.NoError(t, c.Validate())
	require.Equal(t, "en", c.API.DefaultLocale)
}
