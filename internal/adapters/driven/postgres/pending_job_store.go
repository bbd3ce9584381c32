package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PendingJobStore = (*PendingJobStore)(nil)

// PendingJobStore tracks pending-job references on PostgreSQL so a
// reaper can recover batches the queue never redelivered. PopOldest is
// atomic via FOR UPDATE SKIP LOCKED, so concurrent reapers never pop the
// same ref.
type PendingJobStore struct {
	db    *DB
	table string
}

// NewPendingJobStore creates a store over the persistence pipeline's
// pending-job table.
func NewPendingJobStore(db *DB) *PendingJobStore {
	return &PendingJobStore{db: db, table: "persistence_pending_jobs"}
}

// NewIndexingPendingJobStore creates a store over the indexing pipeline's
// own pending-job table (same shape, separate namespace).
func NewIndexingPendingJobStore(db *DB) *PendingJobStore {
	return &PendingJobStore{db: db, table: "indexing_pending_jobs"}
}

// Add upserts a pending-job reference with a TTL.
func (s *PendingJobStore) Add(ctx context.Context, ref domain.PendingJobRef, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+s.table+` (payload_key, index_name, batch_id, bulk_op_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, now() + $6 * interval '1 second')
		ON CONFLICT (payload_key) DO UPDATE
		SET expires_at = now() + $6 * interval '1 second'
	`, ref.PayloadKey, ref.IndexName, ref.BatchID, ref.BulkOpID, ref.CreatedAt, int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("add pending job %s: %w", ref.PayloadKey, err)
	}
	return nil
}

// Remove drops a pending-job reference once its batch commits.
func (s *PendingJobStore) Remove(ctx context.Context, payloadKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM `+s.table+` WHERE payload_key = $1`, payloadKey)
	if err != nil {
		return fmt.Errorf("remove pending job %s: %w", payloadKey, err)
	}
	return nil
}

// PopOldest atomically removes and returns the oldest unexpired reference,
// or domain.ErrNotFound if none remain.
func (s *PendingJobStore) PopOldest(ctx context.Context) (domain.PendingJobRef, error) {
	var ref domain.PendingJobRef
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT payload_key, index_name, batch_id, bulk_op_id, created_at
			FROM `+s.table+`
			WHERE expires_at > now()
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`)
		if err := row.Scan(&ref.PayloadKey, &ref.IndexName, &ref.BatchID, &ref.BulkOpID, &ref.CreatedAt); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`DELETE FROM `+s.table+` WHERE payload_key = $1`, ref.PayloadKey)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PendingJobRef{}, fmt.Errorf("no pending jobs: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.PendingJobRef{}, fmt.Errorf("pop oldest pending job: %w", err)
	}
	return ref, nil
}
