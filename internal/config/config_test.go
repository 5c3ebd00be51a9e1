package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("SC_BING_KEY", "bing-secret")
	t.Setenv("SC_PG_URL", "postgres://coach@localhost/coach")

	cfg, err := Parse([]byte(`
server:
  port: "9090"
storage:
  driver: Postgres
postgres:
  url: ${SC_PG_URL}
bing:
  apiKey: ${SC_BING_KEY}
bot:
  maxRetries: 3
  retryDelay: 500ms
cors:
  allowedOrigins: ["https://teams.example.com"]
`))
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, DriverPostgres, cfg.Storage.Driver)
	require.Equal(t, "postgres://coach@localhost/coach", cfg.Postgres.URL)
	require.Equal(t, "bing-secret", cfg.Bing.APIKey)
	require.Equal(t, 3, cfg.Bot.MaxRetries)
	require.Equal(t, 500*time.Millisecond, TTLDuration(cfg.Bot.RetryDelay, time.Second))
	require.Equal(t, []string{"https://teams.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`server: {port: "8080"}`))
	require.NoError(t, err)
	require.Equal(t, DriverMemory, cfg.Storage.Driver)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 2, cfg.Bot.MaxRetries)
	require.Equal(t, "Strict", cfg.Bing.SafeSearch)
	require.Equal(t, "en-US", cfg.Bing.DefaultMarket)
	require.NotEmpty(t, cfg.Bot.TokenURL)
}

func TestParseRejectsIncompleteStorage(t *testing.T) {
	_, err := Parse([]byte(`storage: {driver: dynamodb}`))
	require.Error(t, err)

	_, err = Parse([]byte(`storage: {driver: postgres}`))
	require.Error(t, err)

	_, err = Parse([]byte(`storage: {driver: sqlite}`))
	require.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SC_TEST_ENV_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SC_TEST_ENV_VALUE") })

	require.NoError(t, LoadEnvFile(path))
	require.Equal(t, "from-file", os.Getenv("SC_TEST_ENV_VALUE"))
}

func TestTTLDuration(t *testing.T) {
	require.Equal(t, time.Minute, TTLDuration("", time.Minute))
	require.Equal(t, time.Minute, TTLDuration("garbage", time.Minute))
	require.Equal(t, 90*time.Second, TTLDuration("90s", time.Minute))
}
