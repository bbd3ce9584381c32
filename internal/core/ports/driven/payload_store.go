package driven

import (
	"context"
	"time"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

// PayloadStore is the out-of-band store for persistence job payloads:
// every enqueued job's payload is mirrored here keyed by persistenceId
// so a worker can recover it even after the queue itself loses the job's
// data (broker-side eviction).
type PayloadStore interface {
	// Put upserts a job's postings payload with a TTL (~7 days).
	Put(ctx context.Context, persistenceID string, termPostings map[string][]domain.PostingEntry, ttl time.Duration) error

	// Get retrieves a previously stored payload. Returns domain.ErrNotFound
	// if the key is absent or has expired.
	Get(ctx context.Context, persistenceID string) (map[string][]domain.PostingEntry, error)

	// Delete removes a payload after its job commits successfully.
	Delete(ctx context.Context, persistenceID string) error
}

// PendingJobStore tracks (payloadKey, indexName, batchId, bulkOpId,
// createdAt) references with TTL so a periodic reaper can recover jobs the
// queue never redelivered. Backs both persistence_pending_jobs and
// indexing_pending_jobs.
type PendingJobStore interface {
	Add(ctx context.Context, ref domain.PendingJobRef, ttl time.Duration) error
	Remove(ctx context.Context, payloadKey string) error

	// PopOldest atomically removes and returns the oldest pending ref, or
	// domain.ErrNotFound if none remain.
	PopOldest(ctx context.Context) (domain.PendingJobRef, error)
}
