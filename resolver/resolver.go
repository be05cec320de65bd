// Package resolver binds the popularMovies field to the upstream catalog.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/s0up4200/marquee/movie"
	"github.com/s0up4200/marquee/tmdb"
)

// FailurePolicy selects how an upstream failure is reported to the gateway
type FailurePolicy string

const (
	// PolicyError surfaces a typed field error
	PolicyError FailurePolicy = "error"
	// PolicyNull resolves the field to null and only logs the failure
	PolicyNull FailurePolicy = "null"
)

// ParseFailurePolicy validates a configured policy name. Empty means PolicyError.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", PolicyError:
		return PolicyError, nil
	case PolicyNull:
		return PolicyNull, nil
	}
	return "", fmt.Errorf("invalid failure policy: %s (must be 'error' or 'null')", s)
}

// Error codes reported in GraphQL error extensions
const (
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInternal            = "INTERNAL_SERVER_ERROR"
)

// FieldError is a resolver failure meant for the GraphQL errors array
type FieldError struct {
	Field      string
	Code       string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *FieldError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause
func (e *FieldError) Unwrap() error {
	return e.Err
}

// Extensions returns the GraphQL error extensions for e
func (e *FieldError) Extensions() map[string]any {
	ext := map[string]any{"code": e.Code}
	if e.StatusCode != 0 {
		ext["status"] = e.StatusCode
	}
	return ext
}

// Resolver resolves the fields of the Query type
type Resolver struct {
	api    tmdb.API
	policy FailurePolicy
	logger zerolog.Logger
}

// New creates a resolver backed by api
func New(api tmdb.API, policy FailurePolicy, logger zerolog.Logger) (*Resolver, error) {
	if api == nil {
		return nil, errors.New("resolver: upstream API is required")
	}
	if _, err := ParseFailurePolicy(string(policy)); err != nil {
		return nil, err
	}
	if policy == "" {
		policy = PolicyError
	}
	return &Resolver{
		api:    api,
		policy: policy,
		logger: logger.With().Str("component", "resolver").Logger(),
	}, nil
}

// Policy returns the configured failure policy
func (r *Resolver) Policy() FailurePolicy {
	return r.policy
}

// PopularMovies resolves Query.popularMovies. Every call reaches the upstream.
// On success the returned slice is never nil. On failure the result depends on
// the policy: PolicyError returns a *FieldError, PolicyNull returns nil, nil.
func (r *Resolver) PopularMovies(ctx context.Context) (movies []movie.Movie, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Interface("panic", p).Msg("Recovered panic in popularMovies resolver")
			movies = nil
			err = &FieldError{
				Field:   "popularMovies",
				Code:    CodeInternal,
				Message: "internal error resolving popularMovies",
			}
		}
	}()

	movies, err = r.api.FetchPopularMovies(ctx)
	if err != nil {
		r.logger.Error().Err(err).Str("policy", string(r.policy)).Msg("error: fetchMovies")
		if r.policy == PolicyNull {
			return nil, nil
		}
		return nil, upstreamFieldError(err)
	}

	if movies == nil {
		movies = []movie.Movie{}
	}
	return movies, nil
}

func upstreamFieldError(err error) *FieldError {
	fe := &FieldError{
		Field:   "popularMovies",
		Code:    CodeUpstreamUnavailable,
		Message: err.Error(),
		Err:     err,
	}
	var upErr *tmdb.UpstreamError
	if errors.As(err, &upErr) {
		fe.StatusCode = upErr.StatusCode
	}
	return fe
}
