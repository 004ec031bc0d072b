package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with no durability. Intended for tests
// and for deployments that accept resends after a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Load prunes expired records. There is no backing state to read.
func (s *MemoryStore) Load(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-Retention)
	for k, sentAt := range s.records {
		if sentAt.Before(cutoff) {
			delete(s.records, k)
		}
	}
	return nil
}

// Contains implements Store.
func (s *MemoryStore) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key]
	return ok
}

// Record implements Store.
func (s *MemoryStore) Record(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		s.records[key] = s.now()
	}
	return nil
}

// Len implements Store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
