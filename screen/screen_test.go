package screen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/marquee/client"
	"github.com/s0up4200/marquee/gateway"
	"github.com/s0up4200/marquee/movie"
	"github.com/s0up4200/marquee/moviestate"
	"github.com/s0up4200/marquee/resolver"
	"github.com/s0up4200/marquee/tmdb"
)

// newPipeline wires a fake TMDB upstream through the gateway into a cache
func newPipeline(t *testing.T, upstream http.HandlerFunc) (*client.Cache, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	tmdbServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		upstream(w, r)
	}))
	t.Cleanup(tmdbServer.Close)

	api, err := tmdb.NewClient(tmdbServer.URL, "test-token", zerolog.Nop())
	require.NoError(t, err)

	res, err := resolver.New(api, resolver.PolicyError, zerolog.Nop())
	require.NoError(t, err)

	gw, err := gateway.New(gateway.Config{}, res, zerolog.Nop())
	require.NoError(t, err)

	gwServer := httptest.NewServer(gw.Handler())
	t.Cleanup(gwServer.Close)

	transport := client.NewGraphQLTransport(gwServer.URL, 5*time.Second, zerolog.Nop())
	return client.New(transport, client.Options{}, zerolog.Nop()), &calls
}

func popularMovies() client.Query {
	return client.Query{Name: "GetPopularMovies", Text: gateway.PopularMoviesQuery}
}

func settle(t *testing.T, s *Screen) moviestate.State {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := s.WaitSettled(ctx)
	require.NoError(t, err)
	return st
}

func TestScreen_Pipeline(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantMovies []movie.Movie
		wantPhase  moviestate.Phase
		wantError  string
	}{
		{
			name:   "movies",
			status: http.StatusOK,
			body:   `{"page":1,"results":[{"id":1,"title":"X","overview":"Y","poster_path":"/p.jpg"}]}`,
			wantMovies: []movie.Movie{
				{ID: 1, Title: "X", Overview: "Y", PosterPath: "/p.jpg"},
			},
			wantPhase: moviestate.Success,
		},
		{
			name:       "upstream failure",
			status:     http.StatusInternalServerError,
			body:       `{"status_message":"boom"}`,
			wantMovies: []movie.Movie{},
			wantPhase:  moviestate.Failure,
			wantError:  "500",
		},
		{
			name:       "empty results",
			status:     http.StatusOK,
			body:       `{"page":1,"results":[]}`,
			wantMovies: []movie.Movie{},
			wantPhase:  moviestate.Success,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, _ := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			s := New(cache, popularMovies(), zerolog.Nop())
			defer s.Dispose()

			st := settle(t, s)
			assert.Equal(t, tt.wantPhase, st.Phase)
			assert.False(t, st.FetchingMovies)
			assert.Equal(t, tt.wantMovies, st.Movies)
			if tt.wantError == "" {
				assert.False(t, st.HasError())
			} else {
				assert.Contains(t, st.Error, tt.wantError)
			}
		})
	}
}

func TestScreen_SecondMountUsesCache(t *testing.T) {
	cache, calls := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"id":7,"title":"Seven"}]}`))
	})

	first := New(cache, popularMovies(), zerolog.Nop())
	defer first.Dispose()
	settle(t, first)

	second := New(cache, popularMovies(), zerolog.Nop())
	defer second.Dispose()

	st := second.State()
	assert.Equal(t, moviestate.Success, st.Phase)
	assert.Equal(t, []movie.Movie{{ID: 7, Title: "Seven"}}, st.Movies)
	assert.Equal(t, int32(1), calls.Load())
}

func TestScreen_Refresh(t *testing.T) {
	var n atomic.Int32
	cache, calls := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"results":[{"id":1,"title":"Old"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"id":1,"title":"New"}]}`))
	})

	s := New(cache, popularMovies(), zerolog.Nop())
	defer s.Dispose()
	settle(t, s)

	s.Refresh()
	st := s.State()
	if !st.Settled() {
		assert.True(t, st.FetchingMovies)
		assert.Equal(t, []movie.Movie{{ID: 1, Title: "Old"}}, st.Movies)
		st = settle(t, s)
	}
	assert.Equal(t, []movie.Movie{{ID: 1, Title: "New"}}, st.Movies)
	assert.Equal(t, int32(2), calls.Load())
}

// fakeWatcher hands the screen's callback to the test
type fakeWatcher struct {
	fn func(client.Result)
}

func (f *fakeWatcher) Watch(q client.Query, fn func(client.Result)) *client.Subscription {
	f.fn = fn
	return nil
}

func TestScreen_DropsSupersededFlight(t *testing.T) {
	w := &fakeWatcher{}
	s := New(w, popularMovies(), zerolog.Nop())

	w.fn(client.Result{Loading: true, Flight: 1})
	w.fn(client.Result{Loading: true, Flight: 2})
	w.fn(client.Result{Data: []movie.Movie{{ID: 1}}, Flight: 1})

	st := s.State()
	assert.Equal(t, moviestate.Loading, st.Phase)
	assert.True(t, st.FetchingMovies)
	assert.Empty(t, st.Movies)

	w.fn(client.Result{Data: []movie.Movie{{ID: 2}}, Flight: 2})

	st = s.State()
	assert.Equal(t, moviestate.Success, st.Phase)
	assert.Equal(t, []movie.Movie{{ID: 2}}, st.Movies)
}

func TestScreen_CachedResultWithoutLoading(t *testing.T) {
	w := &fakeWatcher{}
	s := New(w, popularMovies(), zerolog.Nop())

	w.fn(client.Result{Data: []movie.Movie{{ID: 3}}, Flight: 9})

	st := s.State()
	assert.Equal(t, moviestate.Success, st.Phase)
	assert.Equal(t, []movie.Movie{{ID: 3}}, st.Movies)
}

func TestScreen_FailureKeepsMovies(t *testing.T) {
	w := &fakeWatcher{}
	s := New(w, popularMovies(), zerolog.Nop())

	w.fn(client.Result{Loading: true, Flight: 1})
	w.fn(client.Result{Data: []movie.Movie{{ID: 1}}, Flight: 1})
	w.fn(client.Result{Loading: true, Flight: 2})
	w.fn(client.Result{Err: &client.QueryError{Message: "upstream unavailable: status 500"}, Flight: 2})

	st := s.State()
	assert.Equal(t, moviestate.Failure, st.Phase)
	assert.Equal(t, "upstream unavailable: status 500", st.Error)
	assert.Equal(t, []movie.Movie{{ID: 1}}, st.Movies)
}

func TestScreen_Dispose(t *testing.T) {
	w := &fakeWatcher{}
	s := New(w, popularMovies(), zerolog.Nop())

	w.fn(client.Result{Loading: true, Flight: 1})
	s.Dispose()
	s.Dispose()
	w.fn(client.Result{Data: []movie.Movie{{ID: 1}}, Flight: 1})

	st := s.State()
	assert.Equal(t, moviestate.Loading, st.Phase)
	assert.Empty(t, st.Movies)
}

func TestScreen_WaitSettledContext(t *testing.T) {
	w := &fakeWatcher{}
	s := New(w, popularMovies(), zerolog.Nop())
	w.fn(client.Result{Loading: true, Flight: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	st, err := s.WaitSettled(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, moviestate.Loading, st.Phase)
}

func TestScreen_Select(t *testing.T) {
	var selected []movie.Movie
	w := &fakeWatcher{}
	s := New(w, popularMovies(), zerolog.Nop(), WithSelect(func(m movie.Movie) {
		selected = append(selected, m)
	}))

	s.Select(movie.Movie{ID: 4, Title: "Four"})
	s.Dispose()
	s.Select(movie.Movie{ID: 5})

	assert.Equal(t, []movie.Movie{{ID: 4, Title: "Four"}}, selected)
}
