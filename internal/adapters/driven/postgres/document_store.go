package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is the default implementation of the external document-body
// collaborator, keyed by (indexName, documentId) on PostgreSQL.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Get returns the stored source body for a document.
func (s *DocumentStore) Get(ctx context.Context, index, docID string) (map[string]any, error) {
	var sourceJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT source FROM documents WHERE index_name = $1 AND doc_id = $2`,
		index, docID,
	).Scan(&sourceJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s/%s: %w", index, docID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s/%s: %w", index, docID, err)
	}

	var source map[string]any
	if err := json.Unmarshal(sourceJSON, &source); err != nil {
		return nil, fmt.Errorf("unmarshal document %s/%s: %w", index, docID, err)
	}
	return source, nil
}

// GetMany resolves multiple document ids; missing ids are omitted.
func (s *DocumentStore) GetMany(ctx context.Context, index string, docIDs []string) (map[string]map[string]any, error) {
	if len(docIDs) == 0 {
		return map[string]map[string]any{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, source FROM documents WHERE index_name = $1 AND doc_id = ANY($2)`,
		index, pq.Array(docIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("get documents for %s: %w", index, err)
	}
	defer rows.Close()

	out := make(map[string]map[string]any, len(docIDs))
	for rows.Next() {
		var docID string
		var sourceJSON []byte
		if err := rows.Scan(&docID, &sourceJSON); err != nil {
			return nil, err
		}
		var source map[string]any
		if err := json.Unmarshal(sourceJSON, &source); err != nil {
			return nil, fmt.Errorf("unmarshal document %s/%s: %w", index, docID, err)
		}
		out[docID] = source
	}
	return out, rows.Err()
}

// Put stores or replaces a document's source body.
func (s *DocumentStore) Put(ctx context.Context, index, docID string, source map[string]any) error {
	sourceJSON, err := json.Marshal(source)
	if err != nil {
		return fmt.Errorf("marshal document %s/%s: %w", index, docID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (index_name, doc_id, source, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (index_name, doc_id) DO UPDATE SET source = $3, updated_at = now()
	`, index, docID, sourceJSON)
	if err != nil {
		return fmt.Errorf("store document %s/%s: %w", index, docID, err)
	}
	return nil
}

// Delete removes a document's source body.
func (s *DocumentStore) Delete(ctx context.Context, index, docID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE index_name = $1 AND doc_id = $2`, index, docID)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", index, docID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("document %s/%s: %w", index, docID, domain.ErrNotFound)
	}
	return nil
}

// DeleteByIndex removes every document body for an index.
func (s *DocumentStore) DeleteByIndex(ctx context.Context, index string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE index_name = $1`, index)
	if err != nil {
		return fmt.Errorf("delete documents for %s: %w", index, err)
	}
	return nil
}

// List pages through an index's documents in doc_id order.
func (s *DocumentStore) List(ctx context.Context, index string, limit, offset int) ([]driven.StoredDocument, error) {
	query := `SELECT doc_id, source FROM documents WHERE index_name = $1 ORDER BY doc_id ASC`
	args := []any{index}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents for %s: %w", index, err)
	}
	defer rows.Close()

	var docs []driven.StoredDocument
	for rows.Next() {
		var doc driven.StoredDocument
		var sourceJSON []byte
		if err := rows.Scan(&doc.ID, &sourceJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(sourceJSON, &doc.Source); err != nil {
			return nil, fmt.Errorf("unmarshal document %s/%s: %w", index, doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of stored documents for an index.
func (s *DocumentStore) Count(ctx context.Context, index string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE index_name = $1`, index,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents for %s: %w", index, err)
	}
	return count, nil
}
