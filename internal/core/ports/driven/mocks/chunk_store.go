package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

// MockChunkStore is an in-memory implementation of ChunkStore for testing.
type MockChunkStore struct {
	mu sync.RWMutex
	// chunks maps index -> term -> ordered chunk set.
	chunks map[string]map[string][]domain.Chunk
}

// NewMockChunkStore creates a new MockChunkStore.
func NewMockChunkStore() *MockChunkStore {
	return &MockChunkStore{chunks: make(map[string]map[string][]domain.Chunk)}
}

func (m *MockChunkStore) ReadAllChunks(ctx context.Context, index, term string) ([]domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.chunks[index][term]
	out := make([]domain.Chunk, len(stored))
	copy(out, stored)
	return out, nil
}

func (m *MockChunkStore) FindTermsByIndex(ctx context.Context, index string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	terms := make([]string, 0, len(m.chunks[index]))
	for term := range m.chunks[index] {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms, nil
}

func (m *MockChunkStore) FindTermsByIndexAndValuePrefix(ctx context.Context, index, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var terms []string
	for term := range m.chunks[index] {
		parts := strings.SplitN(term, ":", 3)
		if len(parts) != 3 {
			continue
		}
		if strings.HasPrefix(parts[2], prefix) {
			terms = append(terms, term)
		}
	}
	sort.Strings(terms)
	return terms, nil
}

func (m *MockChunkStore) WriteChunks(ctx context.Context, index, term string, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chunks[index] == nil {
		m.chunks[index] = make(map[string][]domain.Chunk)
	}
	stored := make([]domain.Chunk, len(chunks))
	copy(stored, chunks)
	m.chunks[index][term] = stored
	return nil
}

func (m *MockChunkStore) DeleteByIndex(ctx context.Context, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, index)
	return nil
}

func (m *MockChunkStore) DeleteByTerm(ctx context.Context, index, term string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks[index], term)
	return nil
}

func (m *MockChunkStore) CountTerms(ctx context.Context, index string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks[index]), nil
}

func (m *MockChunkStore) Ping(ctx context.Context) error { return nil }
