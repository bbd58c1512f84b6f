package gcsuploader

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps images in process memory under mem:// URIs. It is used
// when no bucket is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}}
}

// Put stores a copy of data.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	uri := "mem://" + ObjectName("", name, time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[uri] = append([]byte(nil), data...)
	return uri, nil
}

// Fetch returns the stored bytes for uri.
func (m *MemoryStore) Fetch(_ context.Context, uri string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[uri]
	if !ok {
		return nil, fmt.Errorf("Fetch: object not found: %s", uri)
	}
	return append([]byte(nil), data...), nil
}
