// Package store provides the in-memory implementation of the Store interface.
package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with a mutex-guarded map, used in tests and
// as a no-durability fallback.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Get retrieves an entry by key.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	cp := entry
	return &cp, nil
}

// Put writes a value with the given time-to-live.
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{Key: key, Value: value, ExpiresAt: time.Now().Add(ttl)}
	return nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// ScanExpired returns the keys of all entries expired as of cutoff.
func (s *MemoryStore) ScanExpired(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for key, entry := range s.entries {
		if entry.Expired(cutoff) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Count returns the number of stored entries.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}
