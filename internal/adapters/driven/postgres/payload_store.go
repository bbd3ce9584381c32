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
var _ driven.PayloadStore = (*PayloadStore)(nil)

// PayloadStore persists out-of-band persistence job payloads on
// PostgreSQL, keyed by persistenceId with a TTL enforced on read.
type PayloadStore struct {
	db *DB
}

// NewPayloadStore creates a new PayloadStore.
func NewPayloadStore(db *DB) *PayloadStore {
	return &PayloadStore{db: db}
}

// Put upserts a job's postings payload with a TTL.
func (s *PayloadStore) Put(ctx context.Context, persistenceID string, termPostings map[string][]domain.PostingEntry, ttl time.Duration) error {
	payloadJSON, err := json.Marshal(termPostings)
	if err != nil {
		return fmt.Errorf("marshal payload %s: %w", persistenceID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO persistence_payloads (persistence_id, term_postings, created_at, expires_at)
		VALUES ($1, $2, now(), now() + $3 * interval '1 second')
		ON CONFLICT (persistence_id) DO UPDATE
		SET term_postings = $2, expires_at = now() + $3 * interval '1 second'
	`, persistenceID, payloadJSON, int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("store payload %s: %w", persistenceID, err)
	}
	return nil
}

// Get retrieves a payload; expired entries behave as absent.
func (s *PayloadStore) Get(ctx context.Context, persistenceID string) (map[string][]domain.PostingEntry, error) {
	var payloadJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT term_postings FROM persistence_payloads
		WHERE persistence_id = $1 AND expires_at > now()
	`, persistenceID).Scan(&payloadJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payload %s: %w", persistenceID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load payload %s: %w", persistenceID, err)
	}

	var termPostings map[string][]domain.PostingEntry
	if err := json.Unmarshal(payloadJSON, &termPostings); err != nil {
		return nil, fmt.Errorf("unmarshal payload %s: %w", persistenceID, err)
	}
	return termPostings, nil
}

// Delete removes a payload after its job commits.
func (s *PayloadStore) Delete(ctx context.Context, persistenceID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM persistence_payloads WHERE persistence_id = $1`, persistenceID)
	if err != nil {
		return fmt.Errorf("delete payload %s: %w", persistenceID, err)
	}
	return nil
}

// PurgeExpired drops payloads past their TTL; run periodically.
func (s *PayloadStore) PurgeExpired(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM persistence_payloads WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purge expired payloads: %w", err)
	}
	purged, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(purged), nil
}
