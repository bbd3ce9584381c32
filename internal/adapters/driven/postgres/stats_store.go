package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
)

var _ driven.StatsStore = (*StatsStore)(nil)

// StatsStore persists a corpus statistics snapshot on PostgreSQL.
type StatsStore struct {
	db *DB
}

// NewStatsStore creates a new StatsStore.
func NewStatsStore(db *DB) *StatsStore {
	return &StatsStore{db: db}
}

// Load retrieves the stored stats snapshot for an index, or
// domain.ErrNotFound if none has been saved yet.
func (s *StatsStore) Load(ctx context.Context, index string) (*domain.CorpusStats, error) {
	var statsJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT stats FROM corpus_stats WHERE index_name = $1`, index,
	).Scan(&statsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load stats for %s: %w", index, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load stats for %s: %w", index, err)
	}

	stats := domain.NewCorpusStats()
	if err := json.Unmarshal(statsJSON, stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats for %s: %w", index, err)
	}
	stats.RebuildDerived(index)
	return stats, nil
}

// Save upserts the stats snapshot for an index.
func (s *StatsStore) Save(ctx context.Context, index string, stats *domain.CorpusStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats for %s: %w", index, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO corpus_stats (index_name, stats, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (index_name) DO UPDATE SET stats = $2, updated_at = now()
	`, index, statsJSON)
	if err != nil {
		return fmt.Errorf("save stats for %s: %w", index, err)
	}
	return nil
}

// Delete removes the stats snapshot for an index.
func (s *StatsStore) Delete(ctx context.Context, index string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM corpus_stats WHERE index_name = $1`, index)
	if err != nil {
		return fmt.Errorf("delete stats for %s: %w", index, err)
	}
	return nil
}
