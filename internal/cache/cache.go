// Package cache provides the render cache for flatwiki pages. Entries
// are opaque HTML blobs keyed by page identity; the only write
// discipline is overwrite on recompute and delete on invalidate.
package cache

import "sync"

// Cache is the get/set/delete-by-key contract the page layer depends on.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Memory is an in-process Cache backed by a map.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Close() error { return nil }

var _ Cache = (*Memory)(nil)
