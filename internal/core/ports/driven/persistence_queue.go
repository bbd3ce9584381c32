package driven

import (
	"context"
	"time"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

// PersistenceQueue carries persistence jobs from the indexing pipeline to
// the persistence worker with at-least-once delivery semantics (a job may
// be redelivered after a worker crash; see PayloadStore / PendingJobStore
// for the recovery path when the queue itself loses job data).
type PersistenceQueue interface {
	// Enqueue adds a job for processing.
	Enqueue(ctx context.Context, job domain.PersistenceJob) error

	// Dequeue retrieves the next available job, blocking up to timeout.
	// Returns nil, nil if no job became available within timeout.
	Dequeue(ctx context.Context, timeout time.Duration) (*domain.PersistenceJob, error)

	// Ack acknowledges successful processing of a job.
	Ack(ctx context.Context, job domain.PersistenceJob) error

	// Nack returns a job to the queue for retry after a processing failure.
	Nack(ctx context.Context, job domain.PersistenceJob, reason string) error

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close releases queue resources.
	Close() error
}
