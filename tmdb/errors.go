package tmdb

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors
var (
	// ErrInvalidConfig indicates invalid client configuration
	ErrInvalidConfig = errors.New("invalid tmdb configuration")
	// ErrUpstreamUnavailable indicates the upstream call did not produce a usable response
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// UpstreamError describes a failed call to the TMDB API.
// StatusCode is zero when no HTTP response was received.
type UpstreamError struct {
	StatusCode int
	Message    string
	// Transport is set when no response was received
	Transport bool
	Err       error
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream unavailable: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream unavailable: %s", e.Message)
}

// Unwrap returns the underlying cause
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is makes every UpstreamError match ErrUpstreamUnavailable
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// IsUnauthorized checks if the error indicates a rejected credential
func (e *UpstreamError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsRetryable reports whether repeating the request may succeed
func (e *UpstreamError) IsRetryable() bool {
	switch {
	case e.StatusCode == 0:
		return e.Transport
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}
