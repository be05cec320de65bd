package client

import (
	"container/list"
	"sync"

	"github.com/s0up4200/marquee/movie"
)

// entityStore normalizes movies by ID with least-recently-used eviction
type entityStore struct {
	size      int
	evictList *list.List
	items     map[int]*list.Element
	mu        sync.Mutex
}

// newEntityStore creates a store bounded to size entities. A size of zero
// or less means unbounded.
func newEntityStore(size int) *entityStore {
	return &entityStore{
		size:      size,
		evictList: list.New(),
		items:     make(map[int]*list.Element),
	}
}

// Put stores each movie, replacing an existing entity with the same ID in
// place, and returns the IDs in input order
func (s *entityStore) Put(movies []movie.Movie) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(movies))
	for _, m := range movies {
		ids = append(ids, m.ID)
		if node, exists := s.items[m.ID]; exists {
			s.evictList.MoveToFront(node)
			node.Value = m
			continue
		}
		s.items[m.ID] = s.evictList.PushFront(m)
	}

	for s.size > 0 && s.evictList.Len() > s.size {
		s.removeOldest()
	}
	return ids
}

// Get retrieves a single entity
func (s *entityStore) Get(id int) (movie.Movie, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, exists := s.items[id]
	if !exists {
		return movie.Movie{}, false
	}
	s.evictList.MoveToFront(node)
	return node.Value.(movie.Movie), true
}

// Resolve materializes ids into movies. It reports false if any entity has
// been evicted.
func (s *entityStore) Resolve(ids []int) ([]movie.Movie, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	movies := make([]movie.Movie, 0, len(ids))
	for _, id := range ids {
		node, exists := s.items[id]
		if !exists {
			return nil, false
		}
		s.evictList.MoveToFront(node)
		movies = append(movies, node.Value.(movie.Movie))
	}
	return movies, true
}

// removeOldest removes the least recently used entity
func (s *entityStore) removeOldest() {
	node := s.evictList.Back()
	if node != nil {
		s.evictList.Remove(node)
		delete(s.items, node.Value.(movie.Movie).ID)
	}
}

// Len returns the number of stored entities
func (s *entityStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.evictList.Len()
}
