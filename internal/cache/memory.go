package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Thread-safe for concurrent access.
type MemoryStore struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates an empty store whose entries live for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, entries: make(map[string]*Entry)}
}

// Get returns the data stored under key. Expired entries are removed.
func (s *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	if key == "" {
		return nil, ErrInvalidCacheKey
	}

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrCacheNotFound
	}
	if e.IsExpired() {
		s.mu.Lock()
		if cur, still := s.entries[key]; still && cur == e {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, ErrCacheExpired
	}
	return e.Data, nil
}

// Set stores data under key, replacing any previous entry.
func (s *MemoryStore) Set(_ context.Context, key string, data json.RawMessage) error {
	if key == "" {
		return ErrInvalidCacheKey
	}
	cp := make(json.RawMessage, len(data))
	copy(cp, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = NewEntry(key, cp, s.ttl)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrInvalidCacheKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Clear removes every key starting with prefix.
func (s *MemoryStore) Clear(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
	return nil
}

// CleanupExpired drops every expired entry and returns how many were
// removed.
func (s *MemoryStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if e.IsExpired() {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of entries, including expired ones.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
