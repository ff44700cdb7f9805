package idempotency

import (
	"context"
	"sync"
)

// MemoryStore is a thread-safe in-memory record store for tests and
// single-process setups.
type MemoryStore struct {
	mutex   sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
	}
}

// Load returns the record for a key, or nil when absent.
func (s *MemoryStore) Load(_ context.Context, key string) (*Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	record, ok := s.records[key]
	if !ok {
		return nil, nil
	}

	return &record, nil
}

// Save inserts a record if absent; duplicates return ErrAlreadyExists.
func (s *MemoryStore) Save(_ context.Context, record Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.records[record.IdempotencyKey]; exists {
		return ErrAlreadyExists
	}

	s.records[record.IdempotencyKey] = record

	return nil
}
