package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/s0up4200/marquee/movie"
	"github.com/s0up4200/marquee/resolver"
	"github.com/s0up4200/marquee/tmdb"
)

// ErrMissingAccessToken is returned by ValidateServer without a TMDB token
var ErrMissingAccessToken = errors.New("tmdb.access_token must be set (or TMDB_ACCESS_TOKEN)")

// Load loads the configuration from an optional file and the environment.
// A .env file in the working directory is read first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()

	// Set default values
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".marquee"))
		}

		// Check /etc
		v.AddConfigPath("/etc/marquee/")
	}

	// The config file is optional unless given explicitly
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// TMDB defaults
	v.SetDefault("tmdb.base_url", tmdb.DefaultBaseURL)
	v.SetDefault("tmdb.access_token", "")
	v.SetDefault("tmdb.language", tmdb.DefaultLanguage)
	v.SetDefault("tmdb.timeout", "10s")
	v.SetDefault("tmdb.retry.max_attempts", 1)
	v.SetDefault("tmdb.retry.initial_backoff", "200ms")
	v.SetDefault("tmdb.retry.max_backoff", "2s")

	// Server defaults
	v.SetDefault("server.addr", ":4000")
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("resolver.failure_policy", string(resolver.PolicyError))

	// Client defaults
	v.SetDefault("client.endpoint", "http://localhost:4000/graphql")
	v.SetDefault("client.timeout", "15s")
	v.SetDefault("client.image_base_url", movie.DefaultImageBaseURL)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if err := validateURL("tmdb.base_url", cfg.TMDB.BaseURL); err != nil {
		return err
	}
	if err := validateURL("client.endpoint", cfg.Client.Endpoint); err != nil {
		return err
	}

	if cfg.TMDB.Timeout <= 0 {
		return fmt.Errorf("tmdb.timeout must be positive")
	}
	if cfg.TMDB.Retry.MaxAttempts < 1 {
		return fmt.Errorf("tmdb.retry.max_attempts must be at least 1")
	}
	if cfg.TMDB.Retry.MaxBackoff < cfg.TMDB.Retry.InitialBackoff {
		return fmt.Errorf("tmdb.retry.max_backoff must not be below tmdb.retry.initial_backoff")
	}

	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if _, err := resolver.ParseFailurePolicy(cfg.Resolver.FailurePolicy); err != nil {
		return fmt.Errorf("invalid resolver.failure_policy: %w", err)
	}

	// Validate logging level
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}

// ValidateServer checks the settings the gateway cannot start without
func ValidateServer(cfg *Config) error {
	if strings.TrimSpace(cfg.TMDB.AccessToken) == "" {
		return ErrMissingAccessToken
	}
	return nil
}

func validateURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL: %s", key, raw)
	}
	return nil
}
