package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

// MockPersistenceQueue is an in-memory implementation of PersistenceQueue
// for testing. Jobs are delivered in FIFO order; Nack re-queues at the
// back.
type MockPersistenceQueue struct {
	mu   sync.Mutex
	jobs []domain.PersistenceJob

	acked  []domain.PersistenceJob
	nacked []domain.PersistenceJob
}

// NewMockPersistenceQueue creates a new MockPersistenceQueue.
func NewMockPersistenceQueue() *MockPersistenceQueue {
	return &MockPersistenceQueue{}
}

func (m *MockPersistenceQueue) Enqueue(ctx context.Context, job domain.PersistenceJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *MockPersistenceQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.PersistenceJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.jobs) == 0 {
		return nil, nil
	}
	job := m.jobs[0]
	m.jobs = m.jobs[1:]
	return &job, nil
}

func (m *MockPersistenceQueue) Ack(ctx context.Context, job domain.PersistenceJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, job)
	return nil
}

func (m *MockPersistenceQueue) Nack(ctx context.Context, job domain.PersistenceJob, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nacked = append(m.nacked, job)
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *MockPersistenceQueue) Ping(ctx context.Context) error { return nil }
func (m *MockPersistenceQueue) Close() error                   { return nil }

// Len returns the number of jobs currently queued.
func (m *MockPersistenceQueue) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Acked returns the jobs acknowledged so far.
func (m *MockPersistenceQueue) Acked() []domain.PersistenceJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PersistenceJob, len(m.acked))
	copy(out, m.acked)
	return out
}

// MockPayloadStore is an in-memory implementation of PayloadStore for
// testing. TTLs are recorded but not enforced.
type MockPayloadStore struct {
	mu       sync.Mutex
	payloads map[string]map[string][]domain.PostingEntry
}

// NewMockPayloadStore creates a new MockPayloadStore.
func NewMockPayloadStore() *MockPayloadStore {
	return &MockPayloadStore{payloads: make(map[string]map[string][]domain.PostingEntry)}
}

func (m *MockPayloadStore) Put(ctx context.Context, persistenceID string, termPostings map[string][]domain.PostingEntry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[persistenceID] = termPostings
	return nil
}

func (m *MockPayloadStore) Get(ctx context.Context, persistenceID string) (map[string][]domain.PostingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.payloads[persistenceID]
	if !ok {
		return nil, fmt.Errorf("payload %s: %w", persistenceID, domain.ErrNotFound)
	}
	return payload, nil
}

func (m *MockPayloadStore) Delete(ctx context.Context, persistenceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.payloads, persistenceID)
	return nil
}

// Len returns the number of payloads currently stored.
func (m *MockPayloadStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payloads)
}

// MockPendingJobStore is an in-memory implementation of PendingJobStore for
// testing.
type MockPendingJobStore struct {
	mu   sync.Mutex
	refs []domain.PendingJobRef
}

// NewMockPendingJobStore creates a new MockPendingJobStore.
func NewMockPendingJobStore() *MockPendingJobStore {
	return &MockPendingJobStore{}
}

func (m *MockPendingJobStore) Add(ctx context.Context, ref domain.PendingJobRef, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.refs {
		if existing.PayloadKey == ref.PayloadKey {
			m.refs[i] = ref
			return nil
		}
	}
	m.refs = append(m.refs, ref)
	return nil
}

func (m *MockPendingJobStore) Remove(ctx context.Context, payloadKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ref := range m.refs {
		if ref.PayloadKey == payloadKey {
			m.refs = append(m.refs[:i], m.refs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MockPendingJobStore) PopOldest(ctx context.Context) (domain.PendingJobRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.refs) == 0 {
		return domain.PendingJobRef{}, fmt.Errorf("no pending jobs: %w", domain.ErrNotFound)
	}
	oldest := 0
	for i, ref := range m.refs {
		if ref.CreatedAt.Before(m.refs[oldest].CreatedAt) {
			oldest = i
		}
	}
	ref := m.refs[oldest]
	m.refs = append(m.refs[:oldest], m.refs[oldest+1:]...)
	return ref, nil
}

// Len returns the number of pending refs currently stored.
func (m *MockPendingJobStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refs)
}

// MockDistributedLock is an in-memory implementation of DistributedLock for
// testing.
type MockDistributedLock struct {
	mu    sync.Mutex
	locks map[string]struct{}
}

// NewMockDistributedLock creates a new MockDistributedLock.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{locks: make(map[string]struct{})}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[name]; held {
		return false, nil
	}
	m.locks[name] = struct{}{}
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, name)
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error { return nil }

// MockStatsStore is an in-memory implementation of StatsStore for testing.
type MockStatsStore struct {
	mu    sync.Mutex
	stats map[string]*domain.CorpusStats
}

// NewMockStatsStore creates a new MockStatsStore.
func NewMockStatsStore() *MockStatsStore {
	return &MockStatsStore{stats: make(map[string]*domain.CorpusStats)}
}

func (m *MockStatsStore) Load(ctx context.Context, index string) (*domain.CorpusStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[index]
	if !ok {
		return nil, fmt.Errorf("stats for %s: %w", index, domain.ErrNotFound)
	}
	return s, nil
}

func (m *MockStatsStore) Save(ctx context.Context, index string, stats *domain.CorpusStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[index] = stats
	return nil
}

func (m *MockStatsStore) Delete(ctx context.Context, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stats, index)
	return nil
}
