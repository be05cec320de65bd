// Package moviestate holds the fetch state consumed by the popular movies
// screen. State changes only through Request, Succeed and Fail; each fetch
// cycle is tagged with a token so results of superseded cycles are dropped.
package moviestate

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/s0up4200/marquee/movie"
)

// DefaultErrorMessage is shown when a failure carries no message
const DefaultErrorMessage = "Something went wrong while loading movies"

// Phase is the lifecycle position of the current fetch cycle
type Phase int

const (
	// Idle is the initial phase before any fetch
	Idle Phase = iota
	// Loading means a request is outstanding
	Loading
	// Success means the latest cycle delivered movies
	Success
	// Failure means the latest cycle failed
	Failure
)

// String returns the string representation of a Phase
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Token identifies a fetch cycle. Tokens increase monotonically per machine.
type Token uint64

// State is the canonical screen state
type State struct {
	Movies         []movie.Movie
	FetchingMovies bool
	Error          string
	Phase          Phase
	Token          Token
}

// HasError reports whether the state carries an error message
func (s State) HasError() bool {
	return s.Error != ""
}

// Settled reports whether the latest cycle reached a terminal phase
func (s State) Settled() bool {
	return s.Phase == Success || s.Phase == Failure
}

// Listener observes accepted transitions
type Listener func(State)

// Machine is a reducer-style container for State
type Machine struct {
	mu        sync.Mutex
	state     State
	latest    Token
	terminal  bool
	disposed  bool
	listeners map[int]Listener
	nextID    int
	logger    zerolog.Logger
}

// New creates a machine in the Idle phase with no movies
func New(logger zerolog.Logger) *Machine {
	return &Machine{
		state:     State{Movies: []movie.Movie{}, Phase: Idle},
		listeners: make(map[int]Listener),
		logger:    logger.With().Str("component", "moviestate").Logger(),
	}
}

// State returns a copy of the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() State {
	s := m.state
	s.Movies = movie.Clone(m.state.Movies)
	return s
}

// Subscribe registers fn for every accepted transition and returns a
// function that removes it
func (m *Machine) Subscribe(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Request starts a new fetch cycle and returns its token. Prior movies and
// error are kept until the cycle ends. After Dispose it returns the zero token.
func (m *Machine) Request() Token {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return 0
	}

	m.latest++
	m.terminal = false
	m.state.FetchingMovies = true
	m.state.Phase = Loading
	m.state.Token = m.latest
	token := m.latest

	m.logger.Debug().Uint64("token", uint64(token)).Msg("fetchMoviesRequest")
	m.notifyLocked()
	return token
}

// Succeed records movies as the result of the cycle token. It reports false
// when the event was dropped.
func (m *Machine) Succeed(token Token, movies []movie.Movie) bool {
	m.mu.Lock()
	if !m.acceptLocked(token, "fetchMoviesSuccess") {
		m.mu.Unlock()
		return false
	}

	if movies == nil {
		movies = []movie.Movie{}
	}
	m.state.Movies = movie.Clone(movies)
	m.state.FetchingMovies = false
	m.state.Error = ""
	m.state.Phase = Success

	m.logger.Debug().Uint64("token", uint64(token)).Int("count", len(movies)).Msg("fetchMoviesSuccess")
	m.notifyLocked()
	return true
}

// Fail records msg as the failure of the cycle token. Movies from earlier
// cycles are kept. It reports false when the event was dropped.
func (m *Machine) Fail(token Token, msg string) bool {
	m.mu.Lock()
	if !m.acceptLocked(token, "fetchMoviesFailure") {
		m.mu.Unlock()
		return false
	}

	if msg == "" {
		msg = DefaultErrorMessage
	}
	m.state.FetchingMovies = false
	m.state.Error = msg
	m.state.Phase = Failure

	m.logger.Debug().Uint64("token", uint64(token)).Str("error", msg).Msg("fetchMoviesFailure")
	m.notifyLocked()
	return true
}

// acceptLocked marks the cycle terminal if token may end it
func (m *Machine) acceptLocked(token Token, action string) bool {
	switch {
	case m.disposed:
		return false
	case token != m.latest || token == 0:
		m.logger.Debug().
			Uint64("token", uint64(token)).
			Uint64("latest", uint64(m.latest)).
			Str("action", action).
			Msg("Dropping stale result")
		return false
	case m.terminal:
		m.logger.Debug().Uint64("token", uint64(token)).Str("action", action).Msg("Cycle already settled")
		return false
	}
	m.terminal = true
	return true
}

// notifyLocked releases m.mu and then calls listeners with the new state
func (m *Machine) notifyLocked() {
	s := m.snapshotLocked()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(s)
	}
}

// Dispose ends the machine's lifecycle. Later actions are ignored and
// listeners are dropped.
func (m *Machine) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disposed = true
	m.listeners = make(map[int]Listener)
}

// Disposed reports whether Dispose has been called
func (m *Machine) Disposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.disposed
}
