package cachestore

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process LRU cache with per-entry TTL. It is safe
// for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	max     int
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	key     string
	value   []byte
	expires time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMaxEntries bounds the cache size. Default is 512.
func WithMaxEntries(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithTTL sets the entry time-to-live. Zero disables expiration.
// Default is one hour.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.ttl = ttl
	}
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an in-process cache store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		max:     defaultMaxEntries,
		ttl:     defaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached value and refreshes its LRU position.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	entry := elem.Value.(*memoryEntry)
	if !entry.expires.IsZero() && s.now().After(entry.expires) {
		s.removeLocked(elem)
		return nil, ErrNotFound
	}

	s.lru.MoveToFront(elem)
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores a value, evicting the least recently used entry when full.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	if key == "" {
		return ErrInvalidKey
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	var expires time.Time
	if s.ttl > 0 {
		expires = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = stored
		entry.expires = expires
		s.lru.MoveToFront(elem)
		return nil
	}

	elem := s.lru.PushFront(&memoryEntry{key: key, value: stored, expires: expires})
	s.entries[key] = elem

	for s.lru.Len() > s.max {
		if oldest := s.lru.Back(); oldest != nil {
			s.removeLocked(oldest)
		}
	}
	return nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if elem, ok := s.entries[key]; ok {
		s.removeLocked(elem)
	}
	return nil
}

// Len returns the live entry count, dropping expired entries on the way.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for elem := s.lru.Back(); elem != nil; {
		prev := elem.Prev()
		entry := elem.Value.(*memoryEntry)
		if !entry.expires.IsZero() && now.After(entry.expires) {
			s.removeLocked(elem)
		}
		elem = prev
	}
	return s.lru.Len(), nil
}

// Close is a no-op for the in-process store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) removeLocked(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	delete(s.entries, entry.key)
	s.lru.Remove(elem)
}
