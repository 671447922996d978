package view

import (
	"reflect"
	"sync"
)

// Store holds the latest view model per region. Set replaces a region
// wholesale and notifies subscribers only when the new model differs from
// the current one.
type Store struct {
	mu       sync.RWMutex
	regions  map[Region]any
	versions map[Region]uint64
	subs     map[int]chan Region
	nextSub  int
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		regions:  make(map[Region]any),
		versions: make(map[Region]uint64),
		subs:     make(map[int]chan Region),
	}
}

// Set replaces region r with v. It reports whether the region changed.
// Subscribers are notified under the lock so an unsubscribe cannot close a
// channel mid-send; the sends never block.
func (s *Store) Set(r Region, v any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.regions[r]; ok && reflect.DeepEqual(cur, v) {
		return false
	}
	s.regions[r] = v
	s.versions[r]++

	for _, ch := range s.subs {
		select {
		case ch <- r:
		default:
			// slow subscriber; it re-reads the snapshot on its next wake-up
		}
	}
	return true
}

// Get returns the raw model of region r.
func (s *Store) Get(r Region) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.regions[r]
	return v, ok
}

// Version counts how many times region r has been published.
func (s *Store) Version(r Region) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[r]
}

// Snapshot copies the current region map.
func (s *Store) Snapshot() map[Region]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Region]any, len(s.regions))
	for k, v := range s.regions {
		out[k] = v
	}
	return out
}

// Subscribe returns a channel receiving the name of every changed region,
// and a function that unsubscribes and closes it.
func (s *Store) Subscribe(buffer int) (<-chan Region, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Region, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// Lookup returns region r typed as T.
func Lookup[T any](s *Store, r Region) (T, bool) {
	v, ok := s.Get(r)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
