// Package memory provides an in-process secret store for tests and local
// development.
package memory

import (
	"context"
	"sync"

	"github.com/crowdit/crowdmcp/pkg/secrets"
)

// Store is a map-backed secrets.Store.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ secrets.Store = (*Store)(nil)

// New creates a store seeded with initial values.
func New(initial map[string]string) *Store {
	s := &Store{values: make(map[string]string, len(initial))}
	for k, v := range initial {
		s.values[k] = v
	}
	return s
}

// Get returns the value or secrets.ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	if !ok {
		return "", secrets.ErrNotFound
	}
	return v, nil
}

// Put stores value under name.
func (s *Store) Put(ctx context.Context, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}

// Len returns the number of stored secrets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
