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
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore persists index metadata on PostgreSQL.
type IndexStore struct {
	db *DB
}

// NewIndexStore creates a new IndexStore.
func NewIndexStore(db *DB) *IndexStore {
	return &IndexStore{db: db}
}

// Create inserts a new index; returns domain.ErrAlreadyExists on a name
// collision.
func (s *IndexStore) Create(ctx context.Context, meta *domain.IndexMetadata) error {
	settingsJSON, err := json.Marshal(meta.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	mappingsJSON, err := json.Marshal(meta.Mappings)
	if err != nil {
		return fmt.Errorf("marshal mappings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO indices (name, settings, mappings, status, document_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, meta.Name, settingsJSON, mappingsJSON, meta.Status, meta.DocumentCount, meta.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("create index %s: %w", meta.Name, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("create index %s: %w", meta.Name, err)
	}
	return nil
}

// Get retrieves index metadata by name, or domain.ErrNotFound if absent.
func (s *IndexStore) Get(ctx context.Context, name string) (*domain.IndexMetadata, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, settings, mappings, status, document_count, created_at, updated_at
		FROM indices WHERE name = $1
	`, name)
	meta, err := scanIndexMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get index %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get index %s: %w", name, err)
	}
	return meta, nil
}

// List returns all index metadata.
func (s *IndexStore) List(ctx context.Context) ([]*domain.IndexMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, settings, mappings, status, document_count, created_at, updated_at
		FROM indices ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}
	defer rows.Close()

	var metas []*domain.IndexMetadata
	for rows.Next() {
		meta, err := scanIndexMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("list indices: %w", err)
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// Update replaces an index's stored settings/mappings/status/document
// count.
func (s *IndexStore) Update(ctx context.Context, meta *domain.IndexMetadata) error {
	settingsJSON, err := json.Marshal(meta.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	mappingsJSON, err := json.Marshal(meta.Mappings)
	if err != nil {
		return fmt.Errorf("marshal mappings: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE indices
		SET settings = $2, mappings = $3, status = $4, document_count = $5, updated_at = $6
		WHERE name = $1
	`, meta.Name, settingsJSON, mappingsJSON, meta.Status, meta.DocumentCount, meta.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update index %s: %w", meta.Name, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update index %s: %w", meta.Name, err)
	}
	if rows == 0 {
		return fmt.Errorf("update index %s: %w", meta.Name, domain.ErrNotFound)
	}
	return nil
}

// Delete removes an index's metadata row. Cascading deletion of its chunks,
// stats, and documents is the caller's responsibility (the admin service
// orchestrates deletion across stores).
func (s *IndexStore) Delete(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM indices WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete index %s: %w", name, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete index %s: %w", name, err)
	}
	if rows == 0 {
		return fmt.Errorf("delete index %s: %w", name, domain.ErrNotFound)
	}
	return nil
}

// Ping checks if the store backend is healthy.
func (s *IndexStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func scanIndexMetadata(row rowScanner) (*domain.IndexMetadata, error) {
	var meta domain.IndexMetadata
	var settingsJSON, mappingsJSON []byte
	var updatedAt sql.NullTime

	if err := row.Scan(&meta.Name, &settingsJSON, &mappingsJSON, &meta.Status, &meta.DocumentCount, &meta.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settingsJSON, &meta.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings for %s: %w", meta.Name, err)
	}
	if err := json.Unmarshal(mappingsJSON, &meta.Mappings); err != nil {
		return nil, fmt.Errorf("unmarshal mappings for %s: %w", meta.Name, err)
	}
	if updatedAt.Valid {
		meta.UpdatedAt = &updatedAt.Time
	}
	return &meta, nil
}
