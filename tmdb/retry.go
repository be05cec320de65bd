package tmdb

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/s0up4200/marquee/movie"
)

// RetryConfig bounds the retry policy applied around an API
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Enabled reports whether more than one attempt is allowed
func (c RetryConfig) Enabled() bool {
	return c.MaxAttempts > 1
}

// RetryingClient retries retryable upstream failures with exponential backoff
type RetryingClient struct {
	api    API
	cfg    RetryConfig
	logger zerolog.Logger
}

// NewRetryingClient wraps api with the given policy
func NewRetryingClient(api API, cfg RetryConfig, logger zerolog.Logger) *RetryingClient {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return &RetryingClient{
		api:    api,
		cfg:    cfg,
		logger: logger.With().Str("component", "tmdb-retry").Logger(),
	}
}

// WithRetry returns api unchanged when cfg allows a single attempt
func WithRetry(api API, cfg RetryConfig, logger zerolog.Logger) API {
	if !cfg.Enabled() {
		return api
	}
	return NewRetryingClient(api, cfg, logger)
}

// FetchPopularMovies calls the wrapped API until it succeeds, fails
// permanently or runs out of attempts
func (r *RetryingClient) FetchPopularMovies(ctx context.Context) ([]movie.Movie, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialBackoff
	b.MaxInterval = r.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	maxRetries := uint64(0)
	if r.cfg.MaxAttempts > 1 {
		maxRetries = uint64(r.cfg.MaxAttempts - 1)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)

	var movies []movie.Movie
	attempt := 0
	operation := func() error {
		attempt++
		result, err := r.api.FetchPopularMovies(ctx)
		if err != nil {
			var upErr *UpstreamError
			if errors.As(err, &upErr) && !upErr.IsRetryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		movies = result
		return nil
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Upstream request failed, retrying")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if !errors.Is(err, ErrUpstreamUnavailable) {
			return nil, &UpstreamError{Message: err.Error(), Err: err}
		}
		return nil, err
	}

	return movies, nil
}
