package driven

import (
	"context"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

// StatsStore persists corpus statistics so recompute runs have a source of
// truth independent of the in-process *domain.CorpusStats held by a reader.
type StatsStore interface {
	Load(ctx context.Context, index string) (*domain.CorpusStats, error)
	Save(ctx context.Context, index string, stats *domain.CorpusStats) error
	Delete(ctx context.Context, index string) error
}
