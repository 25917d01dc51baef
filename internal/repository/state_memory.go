package repository

import (
	"context"
	"sync"

	"github.com/jkindrix/zenquote/internal/domain"
)

// MemoryStateStore implements domain.StateStore in process memory.
// State is lost on restart.
type MemoryStateStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

var _ domain.StateStore = (*MemoryStateStore)(nil)

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{values: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (s *MemoryStateStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

// Put replaces the value stored under key.
func (s *MemoryStateStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = clone(value)
	return nil
}

// Update applies fn under the store lock.
func (s *MemoryStateStore) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current []byte
	if v, ok := s.values[key]; ok {
		current = clone(v)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	s.values[key] = clone(next)
	return nil
}

// Ping always succeeds.
func (s *MemoryStateStore) Ping(ctx context.Context) error {
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
