// Package memory provides an in-process KV backend, used as the default
// storage and as a deterministic fake in tests.
package memory

import (
	"context"
	"sync"

	"github.com/shopkit/checkout/internal/storage"
)

var _ storage.KV = (*KV)(nil)

// KV is a concurrency-safe map-backed key-value store.
type KV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty in-memory KV.
func New() *KV {
	return &KV{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value, so callers can't mutate the
// store through the returned slice.
func (s *KV) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *KV) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = stored
	return nil
}

func (s *KV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
