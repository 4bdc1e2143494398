package credentials

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by helpers when a key is absent.
var ErrNotFound = errors.New("credentials: key not found")

// KV is the persistent key/value capability the Store writes through.
// Values are opaque bytes (JSON-encoded by the Store). Delete of a missing key is not an error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryKV is an in-process KV used by tests and the "memory" backend.
type MemoryKV struct {
	mu    sync.RWMutex
	store map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{store: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.store[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.store[key] = v
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, key)
	return nil
}

// Len reports the number of stored keys.
func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}
