// Package cache provides a small in-process LRU store with per-entry TTL.
// It replaces the bare process-wide map pattern: callers inject a *Store and
// treat hits as a latency optimization, never as a source of truth.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Entry is a cached value with its creation time and producer version.
type Entry struct {
	Value     []byte
	CreatedAt time.Time
	Version   string
}

// Store is a fixed-capacity LRU cache with TTL-based expiry.
type Store struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	order      *list.List
	items      map[string]*list.Element

	now func() time.Time
}

type item struct {
	key   string
	entry Entry
}

// New constructs a Store. maxEntries <= 0 disables the size bound; ttl <= 0
// disables expiry.
func New(maxEntries int, ttl time.Duration) *Store {
	return &Store{
		maxEntries: maxEntries,
		ttl:        ttl,
		order:      list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

// Get returns the entry for key if present and not expired.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return Entry{}, false
	}
	it := el.Value.(*item)
	if s.ttl > 0 && s.now().Sub(it.entry.CreatedAt) > s.ttl {
		s.removeLocked(el)
		return Entry{}, false
	}
	s.order.MoveToFront(el)
	return it.entry, true
}

// Set stores value under key, evicting the least-recently-used entry when
// over capacity.
func (s *Store) Set(key string, value []byte, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{Value: value, CreatedAt: s.now(), Version: version}
	if el, ok := s.items[key]; ok {
		el.Value.(*item).entry = entry
		s.order.MoveToFront(el)
		return
	}

	el := s.order.PushFront(&item{key: key, entry: entry})
	s.items[key] = el

	if s.maxEntries > 0 && s.order.Len() > s.maxEntries {
		if oldest := s.order.Back(); oldest != nil {
			s.removeLocked(oldest)
		}
	}
}

// Len reports the number of live entries, expired ones included until read.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *Store) removeLocked(el *list.Element) {
	it := el.Value.(*item)
	delete(s.items, it.key)
	s.order.Remove(el)
}
