package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		TMDB: TMDBConfig{
			BaseURL:     "https://api.themoviedb.org/3",
			AccessToken: "token",
			Timeout:     10 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:    3,
				InitialBackoff: 200 * time.Millisecond,
				MaxBackoff:     2 * time.Second,
			},
		},
		Server:  ServerConfig{Addr: ":4000"},
		Client:  ClientConfig{Endpoint: "http://localhost:4000/graphql"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.themoviedb.org/3", cfg.TMDB.BaseURL)
	assert.Equal(t, "en-US", cfg.TMDB.Language)
	assert.Equal(t, 10*time.Second, cfg.TMDB.Timeout)
	assert.Equal(t, 1, cfg.TMDB.Retry.MaxAttempts)
	assert.Equal(t, ":4000", cfg.Server.Addr)
	assert.Equal(t, "error", cfg.Resolver.FailurePolicy)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500", cfg.Client.ImageBaseURL)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "marquee.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tmdb:
  access_token: from-file
  timeout: 3s
server:
  addr: ":8080"
resolver:
  failure_policy: "null"
logging:
  level: debug
`), 0o600))

	t.Setenv("SERVER_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.TMDB.AccessToken)
	assert.Equal(t, 3*time.Second, cfg.TMDB.Timeout)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "null", cfg.Resolver.FailurePolicy)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TMDB_ACCESS_TOKEN=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TMDB_ACCESS_TOKEN") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.TMDB.AccessToken)
	assert.NoError(t, ValidateServer(cfg))
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:        "relative base url",
			mutate:      func(c *Config) { c.TMDB.BaseURL = "api.themoviedb.org" },
			errContains: "tmdb.base_url",
		},
		{
			name:        "missing endpoint",
			mutate:      func(c *Config) { c.Client.Endpoint = "" },
			errContains: "client.endpoint is required",
		},
		{
			name:        "zero attempts",
			mutate:      func(c *Config) { c.TMDB.Retry.MaxAttempts = 0 },
			errContains: "max_attempts",
		},
		{
			name:        "backoff bounds",
			mutate:      func(c *Config) { c.TMDB.Retry.MaxBackoff = time.Millisecond },
			errContains: "max_backoff",
		},
		{
			name:        "unknown failure policy",
			mutate:      func(c *Config) { c.Resolver.FailurePolicy = "ignore" },
			errContains: "resolver.failure_policy",
		},
		{
			name:        "bad log level",
			mutate:      func(c *Config) { c.Logging.Level = "loud" },
			errContains: "invalid logging level",
		},
		{
			name:        "bad log format",
			mutate:      func(c *Config) { c.Logging.Format = "xml" },
			errContains: "invalid logging format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := validate(cfg)
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidateServer(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, ValidateServer(cfg))

	cfg.TMDB.AccessToken = "  "
	assert.ErrorIs(t, ValidateServer(cfg), ErrMissingAccessToken)
}
