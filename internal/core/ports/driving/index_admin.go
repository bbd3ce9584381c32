package driving

import (
	"context"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

// IndexAdminService manages index lifecycle: creation, settings/mappings
// updates, deletion, and rebuild.
type IndexAdminService interface {
	CreateIndex(ctx context.Context, name string, settings domain.IndexSettings, mappings domain.Mappings) (*domain.IndexMetadata, error)
	GetIndex(ctx context.Context, name string) (*domain.IndexMetadata, error)
	ListIndices(ctx context.Context) ([]*domain.IndexMetadata, error)
	DeleteIndex(ctx context.Context, name string) error
	UpdateSettings(ctx context.Context, name string, settings domain.IndexSettings) (*domain.IndexMetadata, error)
	UpdateMappings(ctx context.Context, name string, mappings domain.Mappings) (*domain.IndexMetadata, error)

	// RebuildIndex resets an index's in-memory dictionary and corpus stats
	// and re-indexes its stored documents through the indexing pipeline.
	RebuildIndex(ctx context.Context, name string, opts RebuildOptions) (RebuildStatus, error)

	// ResetAll deletes every index and its data. Guarded by RESET_KEY at
	// the HTTP boundary.
	ResetAll(ctx context.Context) error
}

// RebuildOptions configures a rebuild run.
type RebuildOptions struct {
	BatchSize                     int
	Concurrency                   int
	EnableTermPostingsPersistence bool
}

// RebuildStatus is returned once a rebuild has finished.
type RebuildStatus struct {
	BatchID        string `json:"batchId"`
	TotalBatches   int    `json:"totalBatches"`
	TotalDocuments int    `json:"totalDocuments"`
	Status         string `json:"status"`
}
