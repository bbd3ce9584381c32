package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

// MockIndexStore is an in-memory implementation of IndexStore for testing.
type MockIndexStore struct {
	mu      sync.RWMutex
	indices map[string]*domain.IndexMetadata
}

// NewMockIndexStore creates a new MockIndexStore.
func NewMockIndexStore() *MockIndexStore {
	return &MockIndexStore{indices: make(map[string]*domain.IndexMetadata)}
}

func (m *MockIndexStore) Create(ctx context.Context, meta *domain.IndexMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indices[meta.Name]; ok {
		return fmt.Errorf("create index %s: %w", meta.Name, domain.ErrAlreadyExists)
	}
	copied := *meta
	m.indices[meta.Name] = &copied
	return nil
}

func (m *MockIndexStore) Get(ctx context.Context, name string) (*domain.IndexMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.indices[name]
	if !ok {
		return nil, fmt.Errorf("get index %s: %w", name, domain.ErrNotFound)
	}
	copied := *meta
	return &copied, nil
}

func (m *MockIndexStore) List(ctx context.Context) ([]*domain.IndexMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.indices))
	for name := range m.indices {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*domain.IndexMetadata, len(names))
	for i, name := range names {
		copied := *m.indices[name]
		out[i] = &copied
	}
	return out, nil
}

func (m *MockIndexStore) Update(ctx context.Context, meta *domain.IndexMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indices[meta.Name]; !ok {
		return fmt.Errorf("update index %s: %w", meta.Name, domain.ErrNotFound)
	}
	copied := *meta
	m.indices[meta.Name] = &copied
	return nil
}

func (m *MockIndexStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indices[name]; !ok {
		return fmt.Errorf("delete index %s: %w", name, domain.ErrNotFound)
	}
	delete(m.indices, name)
	return nil
}

func (m *MockIndexStore) Ping(ctx context.Context) error { return nil }
