package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	TMDB     TMDBConfig     `mapstructure:"tmdb"`
	Server   ServerConfig   `mapstructure:"server"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Client   ClientConfig   `mapstructure:"client"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// TMDBConfig holds the upstream API connection details
type TMDBConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	AccessToken string        `mapstructure:"access_token"`
	Language    string        `mapstructure:"language"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retry       RetryConfig   `mapstructure:"retry"`
}

// RetryConfig bounds retries of failed upstream requests
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// ServerConfig contains the gateway listener settings
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// ResolverConfig controls how resolvers report upstream failures
type ResolverConfig struct {
	FailurePolicy string `mapstructure:"failure_policy"`
}

// ClientConfig contains settings for the gateway client
type ClientConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ImageBaseURL string        `mapstructure:"image_base_url"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
