package conversation

import (
	"context"
	"errors"
	"sync"
)

// ErrQuotaExceeded is returned when a write would exceed the memory quota.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// MemoryBackend keeps values in process memory. A positive quota caps the
// total number of stored bytes, mirroring browser storage limits.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
	quota  int
}

// NewMemoryBackend bootstraps an empty in-memory backend; quota <= 0 means unlimited.
func NewMemoryBackend(quota int) *MemoryBackend {
	return &MemoryBackend{
		values: make(map[string][]byte),
		quota:  quota,
	}
}

// Get returns a copy of the stored value.
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, ok := b.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	copied := make([]byte, len(value))
	copy(copied, value)
	return copied, nil
}

// Put stores value under key, replacing the previous value.
func (b *MemoryBackend) Put(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.quota > 0 {
		used := len(value)
		for k, v := range b.values {
			if k != key {
				used += len(v)
			}
		}
		if used > b.quota {
			return ErrQuotaExceeded
		}
	}

	b.values[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.values[key]; !ok {
		return ErrNotFound
	}
	delete(b.values, key)
	return nil
}

// Close is a no-op.
func (b *MemoryBackend) Close() error { return nil }
