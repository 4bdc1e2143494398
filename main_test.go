package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/config"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/devbackend"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/sessions"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/storage"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/tokens"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/users"
)

func startBackend(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	seed, err := users.ParseSeed("admin:admin-pw:admin:123456,editor:editor-pw:editor")
	require.NoError(t, err)
	iss, err := tokens.NewIssuer(config.JWTConfig{Secret: "dashctl-test", AccessTokenTTL: 15 * time.Minute})
	require.NoError(t, err)
	srv := httptest.NewServer(devbackend.NewRouter(devbackend.Deps{
		Users:     users.NewService(users.NewMemoryUserRepository(seed)),
		Sessions:  sessions.NewService(sessions.NewMemoryRepository()),
		Blacklist: sessions.NewMemoryBlacklist(),
		Issuer:    iss,
		Blobs:     storage.NewMemoryStorage("/api/v1/media"),
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// dashctl runs one CLI invocation against the shared credential file.
func dashctl(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func setupEnv(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	credFile := filepath.Join(dir, "credentials.json")
	t.Setenv("API_BASE_URL", baseURL)
	t.Setenv("CREDENTIAL_STORE", "file")
	t.Setenv("CREDENTIAL_FILE", credFile)
	t.Setenv("LOG_LEVEL", "error")
	return credFile
}

func TestCLI_Session(t *testing.T) {
	credFile := setupEnv(t, startBackend(t))

	code, out, _ := dashctl(t, "status")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "store: file "+credFile)
	assert.Contains(t, out, "state: absent")

	code, out, errOut := dashctl(t, "login", "-u", "editor", "-p", "editor-pw")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "logged in as user 2 (editor)")
	_, err := os.Stat(credFile)
	require.NoError(t, err)

	code, out, _ = dashctl(t, "status")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "state: valid")
	assert.Contains(t, out, "user: 2 (editor)")
	assert.Contains(t, out, "…")

	code, out, _ = dashctl(t, "get", "/api/v1/me")
	require.Equal(t, 0, code)
	assert.Contains(t, out, `"username": "editor"`)

	code, _, errOut = dashctl(t, "get", "/api/v1/admin/stats")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "403")

	// a 403 does not end the session
	code, out, _ = dashctl(t, "status")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "state: valid")

	code, out, _ = dashctl(t, "logout")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "logged out")

	code, _, errOut = dashctl(t, "get", "/api/v1/me")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "401")
	assert.Contains(t, errOut, "dashctl login")
}

func TestCLI_OTPAndUpload(t *testing.T) {
	setupEnv(t, startBackend(t))

	code, _, errOut := dashctl(t, "login", "-u", "admin", "-p", "admin-pw")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "-otp")

	code, _, errOut = dashctl(t, "login", "-u", "admin", "-p", "admin-pw", "-otp", "123456")
	require.Equal(t, 0, code, errOut)

	file := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o600))
	code, out, errOut := dashctl(t, "-lang", "tr", "upload", "/api/v1/media", file)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `"acceptLanguage": "tr"`)
	assert.Contains(t, out, `"contentType": "text/plain`)

	code, out, errOut = dashctl(t, "-metrics", "get", "/api/v1/admin/stats")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "uptime")
	assert.Contains(t, errOut, `readinggroup_client_requests_total{code="200",method="GET"}`)
}

func TestCLI_LoginRecoversFromCorruptStore(t *testing.T) {
	credFile := setupEnv(t, startBackend(t))
	require.NoError(t, os.WriteFile(credFile, []byte("garbage"), 0o600))

	code, _, errOut := dashctl(t, "login", "-u", "editor", "-p", "editor-pw")
	require.Equal(t, 0, code, errOut)

	code, out, _ := dashctl(t, "status")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "state: valid")

	code, _, errOut = dashctl(t, "get", "/api/v1/me")
	assert.Equal(t, 0, code, errOut)
}

func TestCLI_Usage(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1")

	code, _, errOut := dashctl(t)
	assert.Equal(t, 2, code)
	assert.True(t, strings.HasPrefix(errOut, "usage:"))

	code, _, _ = dashctl(t, "frobnicate")
	assert.Equal(t, 2, code)

	code, _, _ = dashctl(t, "login", "-u", "x")
	assert.Equal(t, 2, code)

	code, _, errOut = dashctl(t, "post", "/x", "{not json")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not valid JSON")
}

func TestCLI_NetworkError(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1")
	code, _, errOut := dashctl(t, "get", "/api/v1/me")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "error:")
}
