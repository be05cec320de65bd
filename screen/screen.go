// Package screen binds a watched query to a fetch state machine for the
// lifetime of one screen instance.
package screen

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/s0up4200/marquee/client"
	"github.com/s0up4200/marquee/movie"
	"github.com/s0up4200/marquee/moviestate"
)

// Watcher is the part of the query cache a screen depends on
type Watcher interface {
	Watch(q client.Query, fn func(client.Result)) *client.Subscription
}

// Option configures a Screen
type Option func(*Screen)

// WithSelect sets the callback invoked by Select
func WithSelect(fn func(movie.Movie)) Option {
	return func(s *Screen) {
		s.onSelect = fn
	}
}

// Screen owns the fetch state of one mounted screen
type Screen struct {
	machine  *moviestate.Machine
	sub      *client.Subscription
	onSelect func(movie.Movie)
	logger   zerolog.Logger
	disposed atomic.Bool

	mu      sync.Mutex
	flights map[uint64]moviestate.Token
}

// New mounts a screen: it creates the state machine and subscribes to q
func New(cache Watcher, q client.Query, logger zerolog.Logger, opts ...Option) *Screen {
	s := &Screen{
		machine: moviestate.New(logger),
		flights: make(map[uint64]moviestate.Token),
		logger:  logger.With().Str("component", "screen").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	sub := cache.Watch(q, s.handle)
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	return s
}

// handle translates one cache emission into a machine action
func (s *Screen) handle(r client.Result) {
	if s.disposed.Load() {
		return
	}

	if r.Loading {
		token := s.machine.Request()
		s.mu.Lock()
		s.flights[r.Flight] = token
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	token, ok := s.flights[r.Flight]
	delete(s.flights, r.Flight)
	s.mu.Unlock()

	// A cached result arrives without a loading emission
	if !ok {
		token = s.machine.Request()
	}

	if r.Err != nil {
		s.logger.Warn().Err(r.Err).Uint64("flight", r.Flight).Msg("error: gql")
		s.machine.Fail(token, r.Err.Error())
		return
	}
	s.machine.Succeed(token, r.Data)
}

// State returns the current fetch state
func (s *Screen) State() moviestate.State {
	return s.machine.State()
}

// Subscribe registers fn for state transitions
func (s *Screen) Subscribe(fn moviestate.Listener) func() {
	return s.machine.Subscribe(fn)
}

// Refresh starts a new fetch unless one is already outstanding
func (s *Screen) Refresh() {
	if s.disposed.Load() {
		return
	}
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub != nil {
		sub.Refetch()
	}
}

// Select hands m to the select callback
func (s *Screen) Select(m movie.Movie) {
	if s.onSelect != nil && !s.disposed.Load() {
		s.onSelect(m)
	}
}

// WaitSettled blocks until the latest fetch cycle reaches a terminal phase
// or ctx is done
func (s *Screen) WaitSettled(ctx context.Context) (moviestate.State, error) {
	settled := make(chan moviestate.State, 1)
	unsubscribe := s.machine.Subscribe(func(st moviestate.State) {
		if st.Settled() {
			select {
			case settled <- st:
			default:
			}
		}
	})
	defer unsubscribe()

	if st := s.machine.State(); st.Settled() {
		return st, nil
	}

	select {
	case st := <-settled:
		return st, nil
	case <-ctx.Done():
		return s.machine.State(), ctx.Err()
	}
}

// Dispose unmounts the screen. Results of outstanding requests are discarded.
func (s *Screen) Dispose() {
	if s.disposed.Swap(true) {
		return
	}
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
	s.machine.Dispose()
}
