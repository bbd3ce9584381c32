package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PersistenceQueue = (*Queue)(nil)

const maxAttempts = 5

// Queue implements PersistenceQueue on PostgreSQL with FOR UPDATE SKIP
// LOCKED, the fallback when Redis is not available. Delivery is
// at-least-once: a job claimed by a crashed worker becomes visible again
// once its visibility deadline passes.
type Queue struct {
	db *sql.DB

	// visibility is how long a dequeued job stays invisible before it is
	// considered abandoned and redelivered.
	visibility time.Duration
}

// NewQueue creates a PostgreSQL-backed persistence queue. Assumes the
// persistence_queue_jobs table exists (schema.sql).
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db, visibility: 5 * time.Minute}
}

// Enqueue adds a job for processing.
func (q *Queue) Enqueue(ctx context.Context, job domain.PersistenceJob) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal persistence job %s: %w", job.BatchID, err)
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO persistence_queue_jobs (persistence_id, index_name, batch_id, job, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, 'pending', 0, now())
		ON CONFLICT (persistence_id) DO UPDATE
		SET job = $4, status = 'pending', visible_at = NULL
	`, job.PersistenceID, job.IndexName, job.BatchID, jobData)
	if err != nil {
		return fmt.Errorf("enqueue persistence job %s: %w", job.BatchID, err)
	}
	return nil
}

// Dequeue claims the next pending (or abandoned) job. PostgreSQL has no
// blocking pop; timeout is honored by polling with a short sleep.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.PersistenceJob, error) {
	deadline := time.Now().Add(timeout)
	for {
		job, err := q.tryDequeue(ctx)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (q *Queue) tryDequeue(ctx context.Context) (*domain.PersistenceJob, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin dequeue transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var persistenceID string
	var jobData []byte
	err = tx.QueryRowContext(ctx, `
		SELECT persistence_id, job FROM persistence_queue_jobs
		WHERE status = 'pending'
		   OR (status = 'processing' AND visible_at <= now())
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&persistenceID, &jobData)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim persistence job: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE persistence_queue_jobs
		SET status = 'processing', attempts = attempts + 1, visible_at = now() + $2 * interval '1 second'
		WHERE persistence_id = $1
	`, persistenceID, int64(q.visibility.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("mark persistence job processing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit dequeue: %w", err)
	}

	var job domain.PersistenceJob
	if err := json.Unmarshal(jobData, &job); err != nil {
		return nil, fmt.Errorf("unmarshal persistence job %s: %w", persistenceID, err)
	}
	return &job, nil
}

// Ack acknowledges successful processing of a job.
func (q *Queue) Ack(ctx context.Context, job domain.PersistenceJob) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM persistence_queue_jobs WHERE persistence_id = $1`, job.PersistenceID)
	if err != nil {
		return fmt.Errorf("ack persistence job %s: %w", job.PersistenceID, err)
	}
	return nil
}

// Nack returns a job to the queue for retry, or parks it as failed once its
// attempts are exhausted.
func (q *Queue) Nack(ctx context.Context, job domain.PersistenceJob, reason string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE persistence_queue_jobs
		SET status = CASE WHEN attempts >= $2 THEN 'failed' ELSE 'pending' END,
		    error = $3,
		    visible_at = NULL
		WHERE persistence_id = $1
	`, job.PersistenceID, maxAttempts, reason)
	if err != nil {
		return fmt.Errorf("nack persistence job %s: %w", job.PersistenceID, err)
	}
	return nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close releases queue resources. The database handle is shared and left
// open.
func (q *Queue) Close() error {
	return nil
}
