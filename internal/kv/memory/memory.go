package memory

import (
	"context"
	"sync"

	"kasirinaja/salecore/internal/kv"
)

var _ kv.Store = (*Store)(nil)

// Store is an in-process kv.Store for development and tests. Each call is
// individually atomic; nothing spans calls, matching the remote backends.
type Store struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func New() *Store {
	return &Store{entries: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return clone(val), true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = clone(value)
	return nil
}

func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func clone(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}
