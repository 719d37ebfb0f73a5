package kv

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store. A positive quota caps the total bytes of
// keys plus values, modelling a browser-style storage quota.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]string
	size  int
	quota int
}

// NewMemoryStore creates a MemoryStore. quotaBytes <= 0 means unlimited.
func NewMemoryStore(quotaBytes int) *MemoryStore {
	return &MemoryStore{data: map[string]string{}, quota: quotaBytes}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newSize := m.size + len(key) + len(value)
	if old, ok := m.data[key]; ok {
		newSize -= len(key) + len(old)
	}
	if m.quota > 0 && newSize > m.quota {
		return fmt.Errorf("%w: set %s needs %d of %d bytes", ErrQuotaExceeded, key, newSize, m.quota)
	}
	m.data[key] = value
	m.size = newSize
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.size -= len(key) + len(old)
		delete(m.data, key)
	}
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
