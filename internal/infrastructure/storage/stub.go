package storage

import (
	"context"
	"sync"

	"github.com/saasforge/backend/internal/application/jobs"
	"github.com/saasforge/backend/internal/domain/shared"
)

// MemoryStore is an in-process ObjectStore used in development and tests
// when no S3-compatible backend is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// Ensure MemoryStore implements ObjectStore
var _ jobs.ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Fetch returns a stored object
func (s *MemoryStore) Fetch(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Store saves an object
func (s *MemoryStore) Store(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = buf
	return nil
}
