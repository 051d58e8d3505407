// Package dedup suppresses reprocessing of inbound message identifiers
// within a bounded retention window.
package dedup

import (
	"time"

	cache "github.com/patrickmn/go-cache"
)

const sweepDivisor = 2

// Store remembers message identifiers for a fixed retention window.
// Entries expire lazily at read time and are swept periodically.
type Store struct {
	entries *cache.Cache
}

// New creates a store with the given retention window. The periodic sweep
// runs at half the window.
func New(window time.Duration) *Store {
	return &Store{
		entries: cache.New(window, window/sweepDivisor),
	}
}

// Seen reports whether id is still inside the retention window.
func (s *Store) Seen(id string) bool {
	_, found := s.entries.Get(id)

	return found
}

// Remember records id. Re-remembering refreshes nothing: the first
// insertion's expiry stands, so an id cannot live past window after its
// first arrival.
func (s *Store) Remember(id string) {
	_ = s.entries.Add(id, time.Now(), cache.DefaultExpiration)
}
