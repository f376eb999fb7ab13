package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/dwikikusuma/okhati-storefront/internal/storage"
)

// Store is an in-memory storage.Store. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]storage.Record
}

func NewStore() *Store {
	return &Store{records: make(map[string]storage.Record)}
}

func (s *Store) Get(_ context.Context, key string) (storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return storage.Record{}, storage.ErrNotFound
	}
	return storage.Record{Value: slices.Clone(rec.Value), Version: rec.Version}, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte, expected uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[key].Version != expected {
		return 0, storage.ErrVersionConflict
	}
	next := expected + 1
	s.records[key] = storage.Record{Value: slices.Clone(value), Version: next}
	return next, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}
