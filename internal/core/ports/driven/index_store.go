package driven

import (
	"context"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

// IndexStore persists index metadata: settings, mappings, status, and
// document count. Created by createIndex, mutated by updateSettings /
// updateMappings, destroyed (cascading) by deleteIndex.
type IndexStore interface {
	Create(ctx context.Context, meta *domain.IndexMetadata) error
	Get(ctx context.Context, name string) (*domain.IndexMetadata, error)
	List(ctx context.Context) ([]*domain.IndexMetadata, error)
	Update(ctx context.Context, meta *domain.IndexMetadata) error
	Delete(ctx context.Context, name string) error
	Ping(ctx context.Context) error
}
