package memory

import (
	"context"
	"sync"

	"github.com/Hemakotibonthada/CancerDetector-sub005/kvstore"
)

// Store is a volatile map-backed implementation of kvstore.Store. It is
// used by tests and as a fallback backend when no durable store is
// available.
type Store struct {
	values map[string][]byte

	lock sync.RWMutex
}

func New() *Store {
	return &Store{
		values: make(map[string][]byte),
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	val, found := s.values[key]
	if !found {
		return nil, kvstore.ErrNotFound
	}

	cp := make([]byte, len(val))
	copy(cp, val)
	return cp, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	cp := make([]byte, len(value))
	copy(cp, value)
	s.values[key] = cp

	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.values, key)

	return nil
}

func (s *Store) ListKeys(_ context.Context) ([]string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}

	return keys, nil
}
