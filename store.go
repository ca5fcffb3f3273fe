package stash

import (
	"context"
	"sync"
)

// Store is the durable key-value medium behind a Cell.
//
// Stores offer no change notification: anything written through another
// process, another cell registry, or by hand is only observed on the next
// Get. Implementations for common backends live under pkg/.
type Store interface {
	// Get returns the entry for key. ok is false when no entry exists,
	// which is distinct from an entry holding an encoded nil value.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set replaces the entry for key.
	Set(ctx context.Context, key string, data []byte) error

	// Delete removes the entry for key. Deleting a missing entry is not an error.
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-process Store backed by a map.
// Values are copied on the way in and out so callers cannot mutate stored bytes.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get returns a copy of the entry for key.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Set stores a copy of data under key.
func (m *MemoryStore) Set(_ context.Context, key string, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	m.data[key] = stored
	m.mu.Unlock()
	return nil
}

// Delete removes key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Keys returns the stored keys in unspecified order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
