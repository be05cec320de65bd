// Package gateway serves the popularMovies GraphQL operation over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/marquee/movie"
)

const maxRequestBody = 1 << 20

// Resolver produces the value of Query.popularMovies
type Resolver interface {
	PopularMovies(ctx context.Context) ([]movie.Movie, error)
}

// Config holds listener settings
type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server is the query gateway
type Server struct {
	cfg      Config
	schema   *ast.Schema
	resolver Resolver
	metrics  *metrics
	logger   zerolog.Logger
}

// New compiles the schema and binds the resolver. It fails when either step
// cannot complete; a returned Server is always ready to serve.
func New(cfg Config, res Resolver, logger zerolog.Logger) (*Server, error) {
	if res == nil {
		return nil, errors.New("gateway: resolver is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":4000"
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	schema, err := LoadSchema()
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		schema:   schema,
		resolver: res,
		metrics:  newMetrics(),
		logger:   logger.With().Str("component", "gateway").Logger(),
	}, nil
}

// Handler returns the HTTP handler serving / and /graphql, plus /metrics
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	mux.Handle("/graphql", s)
	mux.Handle("/metrics", s.metrics.handler())
	return mux
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/graphql" {
		http.NotFound(w, r)
		return
	}

	var req Request
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if vars := q.Get("variables"); vars != "" {
			if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
				s.writeResponse(w, http.StatusBadRequest, &Response{
					Errors: gqlerror.List{gqlerror.Errorf("variables must be a JSON object")},
				})
				return
			}
		}
	case http.MethodPost:
		body := http.MaxBytesReader(w, r.Body, maxRequestBody)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			s.writeResponse(w, http.StatusBadRequest, &Response{
				Errors: gqlerror.List{gqlerror.Errorf("failed to parse request body: %v", err)},
			})
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		s.writeResponse(w, http.StatusMethodNotAllowed, &Response{
			Errors: gqlerror.List{gqlerror.Errorf("method %s not allowed", r.Method)},
		})
		return
	}

	start := time.Now()
	resp, err := s.Execute(r.Context(), req)
	invalid := errors.Is(err, errRequestInvalid)
	status := http.StatusOK
	if invalid {
		status = http.StatusUnprocessableEntity
	}
	s.metrics.observeQuery(queryResult(resp, invalid), time.Since(start).Seconds())

	s.logger.Debug().
		Str("operation", req.OperationName).
		Int("status", status).
		Int("errors", len(resp.Errors)).
		Dur("duration", time.Since(start)).
		Msg("Handled query")

	s.writeResponse(w, status, resp)
}

func (s *Server) writeResponse(w http.ResponseWriter, status int, resp *Response) {
	s.metrics.observeStatus(status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write response")
	}
}

// Run opens the listener and serves until ctx is canceled, then shuts down
// gracefully. The listener is opened before Run returns control to the
// serving goroutine, so a bind failure is reported immediately.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	s.logger.Info().Str("url", "http://"+ln.Addr().String()+"/").Msg("Server ready")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Info().Msg("Shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
