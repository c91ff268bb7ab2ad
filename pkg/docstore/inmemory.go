package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryStore is a thread-safe, in-memory document store. It is used for dry
// runs and tests; it also counts writes per key so that idempotency can be observed.
type InMemoryStore[V any] struct {
	mu      sync.RWMutex
	data    map[string]V
	created map[string]time.Time
	writes  map[string]int
	now     func() time.Time
}

// NewInMemoryStore creates a new, empty in-memory store.
func NewInMemoryStore[V any]() *InMemoryStore[V] {
	return &InMemoryStore[V]{
		data:    make(map[string]V),
		created: make(map[string]time.Time),
		writes:  make(map[string]int),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upsert stores doc under key, replacing any previous document.
func (s *InMemoryStore[V]) Upsert(_ context.Context, key string, doc V) (WriteResult, error) {
	if key == "" {
		return WriteResult{}, NewPersistError(key, ErrEmptyKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	createdAt, exists := s.created[key]
	if !exists {
		createdAt = now
		s.created[key] = now
	}
	s.data[key] = doc
	s.writes[key]++
	return WriteResult{DocumentID: key, CreateTime: createdAt, UpdateTime: now}, nil
}

// Fetch retrieves a document by key.
func (s *InMemoryStore[V]) Fetch(_ context.Context, key string) (V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		var zero V
		return zero, fmt.Errorf("key '%s': %w", key, ErrNotFound)
	}
	return value, nil
}

// Len returns the number of distinct documents held.
func (s *InMemoryStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// WriteCount returns how many times key has been written.
func (s *InMemoryStore[V]) WriteCount(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes[key]
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore[V]) Close() error {
	return nil
}
