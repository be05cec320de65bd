package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/machinebox/graphql"
	"github.com/rs/zerolog"

	"github.com/s0up4200/marquee/movie"
)

// Query identifies a GraphQL operation
type Query struct {
	Name string
	Text string
}

// Key returns the cache identity of q: the operation name plus the query
// text with insignificant whitespace collapsed
func (q Query) Key() string {
	return q.Name + ":" + strings.Join(strings.Fields(q.Text), " ")
}

// Transport executes a query that returns the popularMovies field
type Transport interface {
	Fetch(ctx context.Context, q Query) ([]movie.Movie, error)
}

// popularMoviesData is the data member of the gateway response
type popularMoviesData struct {
	PopularMovies []movie.Movie `json:"popularMovies"`
}

// GraphQLTransport sends queries to the gateway over HTTP
type GraphQLTransport struct {
	client *graphql.Client
	logger zerolog.Logger
}

// NewGraphQLTransport creates a transport for the gateway at endpoint
func NewGraphQLTransport(endpoint string, timeout time.Duration, logger zerolog.Logger) *GraphQLTransport {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	t := &GraphQLTransport{
		client: graphql.NewClient(endpoint, graphql.WithHTTPClient(&http.Client{Timeout: timeout})),
		logger: logger.With().Str("component", "transport").Logger(),
	}
	t.client.Log = func(s string) {
		t.logger.Trace().Msg(s)
	}
	return t
}

// Fetch runs q and returns the popularMovies list. A null list is returned
// as an empty slice.
func (t *GraphQLTransport) Fetch(ctx context.Context, q Query) ([]movie.Movie, error) {
	req := graphql.NewRequest(q.Text)
	req.Header.Set("Accept", "application/json")

	var data popularMoviesData
	if err := t.client.Run(ctx, req, &data); err != nil {
		return nil, classify(err)
	}

	if data.PopularMovies == nil {
		return []movie.Movie{}, nil
	}
	return data.PopularMovies, nil
}

// classify maps a graphql client error onto the package error types
func classify(err error) error {
	var urlErr *url.Error
	switch {
	case errors.As(err, &urlErr),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Err: err}
	}

	msg := err.Error()
	if strings.Contains(msg, "non-200 status code") || strings.Contains(msg, "decoding response") {
		return &TransportError{Err: err}
	}
	return &QueryError{Message: strings.TrimPrefix(msg, "graphql: ")}
}
