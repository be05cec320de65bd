package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/s0up4200/marquee/movie"
)

const (
	// DefaultBaseURL is the TMDB v3 API root
	DefaultBaseURL = "https://api.themoviedb.org/3"
	// DefaultLanguage is the fixed catalog language
	DefaultLanguage = "en-US"

	discoverEndpoint = "/discover/movie"
	maxErrorBody     = 512
)

// Client represents a TMDB API client
type Client struct {
	baseURL     string
	accessToken string
	language    string
	userAgent   string
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewClient creates a new TMDB client. No request is made until
// FetchPopularMovies is called.
func NewClient(baseURL, accessToken string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	if accessToken == "" {
		return nil, fmt.Errorf("%w: access token is required", ErrInvalidConfig)
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", ErrInvalidConfig, err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.timeout}
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		language:    o.language,
		userAgent:   o.userAgent,
		httpClient:  httpClient,
		logger:      logger.With().Str("component", "tmdb").Logger(),
	}, nil
}

// discoverParams returns the fixed query for page 1 of popular movies
func (c *Client) discoverParams() url.Values {
	params := url.Values{}
	params.Set("include_adult", "false")
	params.Set("include_video", "false")
	params.Set("language", c.language)
	params.Set("page", "1")
	params.Set("sort_by", "popularity.desc")
	return params
}

// doRequest performs an authenticated GET and returns the body of a 2xx response
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &UpstreamError{Message: "failed to create request", Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("endpoint", endpoint).
		Msg("Making TMDB API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("request failed: %v", err), Transport: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(snippet))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("failed to read response body: %v", err), Transport: true, Err: err}
	}

	return body, nil
}

// FetchPopularMovies retrieves page 1 of movies sorted by descending popularity
func (c *Client) FetchPopularMovies(ctx context.Context) ([]movie.Movie, error) {
	body, err := c.doRequest(ctx, discoverEndpoint, c.discoverParams())
	if err != nil {
		c.logger.Warn().Err(err).Msg("Popular movies request failed")
		return nil, err
	}

	var response DiscoverResponse
	if err := json.Unmarshal(body, &response); err != nil {
		var syntaxErr *json.SyntaxError
		msg := "failed to parse response"
		if errors.As(err, &syntaxErr) {
			msg = fmt.Sprintf("failed to parse response at offset %d", syntaxErr.Offset)
		}
		return nil, &UpstreamError{Message: msg, Err: err}
	}

	movies := response.Movies()

	c.logger.Debug().
		Int("count", len(movies)).
		Int("total_results", response.TotalResults).
		Msg("Retrieved popular movies from TMDB")

	return movies, nil
}
