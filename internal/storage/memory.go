package storage

import (
	"sort"
	"sync"
)

// MemoryBackend is a Backend held entirely in process memory, capped at a
// fixed total byte budget. It serves two roles: the permanent store when the
// persistent backend is unavailable at construction time, and the overflow
// area for writes the persistent backend rejected.
type MemoryBackend struct {
	mu     sync.Mutex
	budget int
	used   int
	items  map[string]string
}

// Compile-time check: MemoryBackend implements Backend.
var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates a memory backend capped at budget bytes. Usage is
// accounted as key length plus value length.
func NewMemoryBackend(budget int) *MemoryBackend {
	return &MemoryBackend{
		budget: budget,
		items:  make(map[string]string),
	}
}

func (m *MemoryBackend) GetItem(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryBackend) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delta := len(key) + len(value)
	if prev, ok := m.items[key]; ok {
		delta = len(value) - len(prev)
	}
	if m.used+delta > m.budget {
		return ErrQuotaExceeded
	}

	m.items[key] = value
	m.used += delta
	return nil
}

func (m *MemoryBackend) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.items[key]; ok {
		m.used -= len(key) + len(prev)
		delete(m.items, key)
	}
	return nil
}

func (m *MemoryBackend) Keys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.items {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Used returns the current byte usage.
func (m *MemoryBackend) Used() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}
