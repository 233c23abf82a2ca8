package kvs

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps values in a map. State is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// CopyTo writes every stored key into dst, overwriting what dst holds
// under the same keys. It returns the number of keys written.
func (m *MemoryStore) CopyTo(ctx context.Context, dst Store) (int, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return 0, ErrClosed
	}
	keys := make([]string, 0, len(m.data))
	snapshot := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		keys = append(keys, k)
		snapshot[k] = v
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	for i, k := range keys {
		if err := dst.Set(ctx, k, snapshot[k]); err != nil {
			return i, fmt.Errorf("copy %s: %w", k, err)
		}
	}
	return len(keys), nil
}

// Close drops all data.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}
