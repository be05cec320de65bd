// Package client implements the client-side query cache that feeds screen
// state from the gateway.
package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/s0up4200/marquee/movie"
)

// DefaultStoreSize bounds the normalized entity store
const DefaultStoreSize = 1000

// Result is one emission of a watched query. A terminal result has Loading
// false and exactly one of Data or Err set.
type Result struct {
	Data    []movie.Movie
	Loading bool
	Err     error
	// Flight identifies the network request this result belongs to
	Flight uint64
}

// Terminal reports whether r ends a flight
func (r Result) Terminal() bool {
	return !r.Loading
}

// Options configures a Cache
type Options struct {
	StoreSize    int
	FetchTimeout time.Duration
}

// Cache deduplicates and caches query results per query identity
type Cache struct {
	transport Transport
	store     *entityStore
	timeout   time.Duration
	logger    zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	flights atomic.Uint64
}

// entry is the cache state of one query identity
type entry struct {
	key   string
	query Query

	ids        []int
	hasResult  bool
	lastFlight uint64

	inflight uint64
	version  uint64
	subs     map[*Subscription]struct{}
}

// delivery is a result addressed to one subscriber
type delivery struct {
	sub     *Subscription
	result  Result
	version uint64
}

// New creates a cache that issues requests through transport
func New(transport Transport, opts Options, logger zerolog.Logger) *Cache {
	if opts.StoreSize == 0 {
		opts.StoreSize = DefaultStoreSize
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	return &Cache{
		transport: transport,
		store:     newEntityStore(opts.StoreSize),
		timeout:   opts.FetchTimeout,
		logger:    logger.With().Str("component", "query-cache").Logger(),
		entries:   make(map[string]*entry),
	}
}

// Watch subscribes fn to q. A cached result is delivered immediately;
// otherwise fn first observes a loading result followed by exactly one
// terminal result for the request. Concurrent watchers of the same query
// share a single request.
func (c *Cache) Watch(q Query, fn func(Result)) *Subscription {
	sub := &Subscription{cache: c, fn: fn}

	c.mu.Lock()
	key := q.Key()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{key: key, query: q, subs: make(map[*Subscription]struct{})}
		c.entries[key] = e
	}
	sub.entry = e
	e.subs[sub] = struct{}{}

	var deliveries []delivery
	var started uint64
	switch {
	case e.inflight != 0:
		deliveries = append(deliveries, delivery{
			sub:     sub,
			result:  Result{Loading: true, Flight: e.inflight},
			version: e.version,
		})
	case e.hasResult:
		if movies, ok := c.store.Resolve(e.ids); ok {
			e.version++
			deliveries = append(deliveries, delivery{
				sub:     sub,
				result:  Result{Data: movies, Flight: e.lastFlight},
				version: e.version,
			})
			break
		}
		started, deliveries = c.startLocked(e)
	default:
		started, deliveries = c.startLocked(e)
	}
	c.mu.Unlock()

	deliver(deliveries)
	if started != 0 {
		go c.run(e, started)
	}
	return sub
}

// startLocked begins a flight for e and addresses a loading result to every
// subscriber. c.mu must be held.
func (c *Cache) startLocked(e *entry) (uint64, []delivery) {
	id := c.flights.Add(1)
	e.inflight = id
	e.version++

	c.logger.Debug().Str("query", e.query.Name).Uint64("flight", id).Msg("Starting request")

	return id, e.broadcastLocked(Result{Loading: true, Flight: id})
}

func (e *entry) broadcastLocked(r Result) []delivery {
	deliveries := make([]delivery, 0, len(e.subs))
	for sub := range e.subs {
		res := r
		res.Data = movie.Clone(r.Data)
		deliveries = append(deliveries, delivery{sub: sub, result: res, version: e.version})
	}
	return deliveries
}

// run executes a flight and publishes its terminal result. The result is
// discarded when the entry was evicted meanwhile.
func (c *Cache) run(e *entry, flight uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	movies, err := c.transport.Fetch(ctx, e.query)

	c.mu.Lock()
	if c.entries[e.key] != e || e.inflight != flight {
		c.mu.Unlock()
		c.logger.Debug().Uint64("flight", flight).Msg("Discarding result of evicted query")
		return
	}
	e.inflight = 0
	e.version++

	var result Result
	if err != nil {
		c.logger.Warn().Err(err).Str("query", e.query.Name).Uint64("flight", flight).Msg("Request failed")
		result = Result{Err: err, Flight: flight}
	} else {
		if movies == nil {
			movies = []movie.Movie{}
		}
		e.ids = c.store.Put(movies)
		e.hasResult = true
		e.lastFlight = flight
		normalized, _ := c.store.Resolve(e.ids)
		if normalized == nil {
			normalized = movies
		}
		result = Result{Data: normalized, Flight: flight}

		c.logger.Debug().
			Str("query", e.query.Name).
			Uint64("flight", flight).
			Int("count", len(movies)).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	}
	deliveries := e.broadcastLocked(result)
	c.mu.Unlock()

	deliver(deliveries)
}

// refetch starts a new flight for sub's query unless one is outstanding
func (c *Cache) refetch(sub *Subscription) {
	c.mu.Lock()
	e := sub.entry
	if sub.closed.Load() || c.entries[e.key] != e || e.inflight != 0 {
		c.mu.Unlock()
		return
	}
	started, deliveries := c.startLocked(e)
	c.mu.Unlock()

	deliver(deliveries)
	go c.run(e, started)
}

// unsubscribe removes sub and evicts its entry with the last subscriber
func (c *Cache) unsubscribe(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := sub.entry
	delete(e.subs, sub)
	if len(e.subs) == 0 && c.entries[e.key] == e {
		delete(c.entries, e.key)
		c.logger.Debug().Str("query", e.query.Name).Msg("Evicted query with no subscribers")
	}
}

// Entries returns the number of query identities with live subscribers
func (c *Cache) Entries() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Entity returns the normalized movie stored under id
func (c *Cache) Entity(id int) (movie.Movie, bool) {
	return c.store.Get(id)
}

func deliver(deliveries []delivery) {
	for _, d := range deliveries {
		d.sub.enqueue(d.result, d.version)
	}
}

// Subscription is a live watch on a query
type Subscription struct {
	cache  *Cache
	entry  *entry
	fn     func(Result)
	closed atomic.Bool

	mu       sync.Mutex
	queue    []delivery
	draining bool
	last     uint64
}

// Refetch issues a new request for the query. It is a no-op while a
// request is already in flight or after Close.
func (s *Subscription) Refetch() {
	s.cache.refetch(s)
}

// Close stops deliveries. An outstanding request still completes but its
// result is not delivered to s.
func (s *Subscription) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.cache.unsubscribe(s)
}

// enqueue delivers results to fn one at a time in version order. Results
// older than the last delivered one are dropped. A callback may call back
// into the cache; nested deliveries are queued and drained by the outer call.
func (s *Subscription) enqueue(r Result, version uint64) {
	s.mu.Lock()
	s.queue = append(s.queue, delivery{result: r, version: version})
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.queue) > 0 {
		d := s.queue[0]
		s.queue = s.queue[1:]
		if s.closed.Load() || d.version <= s.last {
			continue
		}
		s.last = d.version

		s.mu.Unlock()
		s.fn(d.result)
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}
