package tmdb

import (
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout    time.Duration
	language   string
	userAgent  string
	httpClient *http.Client
}

func defaultOptions() clientOptions {
	return clientOptions{
		timeout:   10 * time.Second,
		language:  DefaultLanguage,
		userAgent: "marquee/1.0",
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithLanguage overrides the language query parameter.
func WithLanguage(language string) Option {
	return func(o *clientOptions) {
		if language != "" {
			o.language = language
		}
	}
}

// WithUserAgent sets a custom user agent string.
func WithUserAgent(userAgent string) Option {
	return func(o *clientOptions) {
		o.userAgent = userAgent
	}
}

// WithHTTPClient replaces the underlying HTTP client. The timeout option is
// ignored when a custom client is supplied.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}
