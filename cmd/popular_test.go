package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/marquee/client"
	"github.com/s0up4200/marquee/config"
	"github.com/s0up4200/marquee/gateway"
	"github.com/s0up4200/marquee/movie"
	"github.com/s0up4200/marquee/moviestate"
	"github.com/s0up4200/marquee/screen"
)

type moviesResolver struct {
	movies []movie.Movie
	err    error
}

func (r moviesResolver) PopularMovies(ctx context.Context) ([]movie.Movie, error) {
	return r.movies, r.err
}

// usePopularFlags sets the popular command globals for one test
func usePopularFlags(t *testing.T, endpoint, filter string, selected int) *bytes.Buffer {
	t.Helper()

	prevCfg, prevLogger := cfg, logger
	prevFilter, prevSelect, prevWatch := filterExpr, selectID, watch
	t.Cleanup(func() {
		cfg, logger = prevCfg, prevLogger
		filterExpr, selectID, watch = prevFilter, prevSelect, prevWatch
		popularCmd.SetOut(nil)
	})

	cfg = &config.Config{Client: config.ClientConfig{
		Endpoint:     endpoint,
		Timeout:      5 * time.Second,
		ImageBaseURL: "https://img.example/w500",
	}}
	logger = zerolog.Nop()
	filterExpr, selectID, watch = filter, selected, false

	var out bytes.Buffer
	popularCmd.SetOut(&out)
	popularCmd.SetContext(context.Background())
	return &out
}

func newGatewayServer(t *testing.T, res gateway.Resolver) string {
	t.Helper()

	gw, err := gateway.New(gateway.Config{}, res, zerolog.Nop())
	require.NoError(t, err)
	server := httptest.NewServer(gw.Handler())
	t.Cleanup(server.Close)
	return server.URL
}

func TestRunPopular_FilterAndSelect(t *testing.T) {
	endpoint := newGatewayServer(t, moviesResolver{movies: []movie.Movie{
		{ID: 1, Title: "Star Quest", Overview: "Space", PosterPath: "/s.jpg"},
		{ID: 2, Title: "Quiet Valley"},
		{ID: 3, Title: "Star Harbor", Overview: "Docks"},
	}})
	out := usePopularFlags(t, endpoint, `contains(Title, "star")`, 3)

	require.NoError(t, runPopular(popularCmd, nil))

	got := out.String()
	assert.Contains(t, got, "Movies (2):")
	assert.Contains(t, got, "[1] Star Quest")
	assert.Contains(t, got, "[3] Star Harbor")
	assert.NotContains(t, got, "Quiet Valley")
	assert.Contains(t, got, "https://img.example/w500/s.jpg")
	assert.Equal(t, 1, strings.Count(got, "Star Harbor [3]"))
	assert.Contains(t, got, "Docks")
}

func TestRunPopular_InvalidFilter(t *testing.T) {
	usePopularFlags(t, "http://127.0.0.1:1/graphql", `Title +`, 0)

	err := runPopular(popularCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter expression")
}

func TestRunPopular_UpstreamFailure(t *testing.T) {
	endpoint := newGatewayServer(t, moviesResolver{
		err: errors.New("upstream unavailable: status 500: Internal Server Error"),
	})
	out := usePopularFlags(t, endpoint, "", 0)

	err := runPopular(popularCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch movies")
	assert.Contains(t, out.String(), "Error: ")
	assert.Contains(t, out.String(), "500")
}

// nopWatcher never emits
type nopWatcher struct{}

func (nopWatcher) Watch(q client.Query, fn func(client.Result)) *client.Subscription {
	return nil
}

func TestRenderer_SkipsRepeatedState(t *testing.T) {
	prevSelect := selectID
	t.Cleanup(func() { selectID = prevSelect })
	selectID = 7

	var selected int
	s := screen.New(nopWatcher{}, client.Query{Name: "GetPopularMovies"}, zerolog.Nop(),
		screen.WithSelect(func(m movie.Movie) { selected++ }))
	defer s.Dispose()

	var out bytes.Buffer
	r := &renderer{out: &out, screen: s, formatter: screen.NewConsoleFormatter("")}

	settled := moviestate.State{
		Movies: []movie.Movie{{ID: 7, Title: "Seven"}},
		Phase:  moviestate.Success,
		Token:  1,
	}
	r.render(settled)
	r.render(settled)

	assert.Equal(t, 1, selected)
	assert.Equal(t, 1, strings.Count(out.String(), "Movie (1):"))

	next := settled
	next.Token = 2
	r.render(next)
	assert.Equal(t, 2, selected)
}
