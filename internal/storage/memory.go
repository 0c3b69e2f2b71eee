package storage

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"sync"
)

// ErrObjectNotFound is returned by MemoryStore.Get for unknown keys
var ErrObjectNotFound = errors.New("object not found")

type object struct {
	data        []byte
	contentType string
}

// MemoryStore is an in-process blob store used in tests and when no object
// storage endpoint is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]object
}

// NewMemoryStore constructs a MemoryStore whose URLs are rooted at baseURL
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: baseURL,
		objects: make(map[string]object),
	}
}

// EnsureBucket is a no-op
func (m *MemoryStore) EnsureBucket(context.Context) error { return nil }

// Put stores a copy of data under key
func (m *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = object{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

// Delete removes key
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// URL returns baseURL joined with the escaped key
func (m *MemoryStore) URL(_ context.Context, key string) (string, error) {
	return m.baseURL + "/" + url.PathEscape(key), nil
}

// Get returns the stored bytes and content type of key
func (m *MemoryStore) Get(key string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", ErrObjectNotFound
	}
	return append([]byte(nil), obj.data...), obj.contentType, nil
}

// Keys returns the stored keys in sorted order
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
