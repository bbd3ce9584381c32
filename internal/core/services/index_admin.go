package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
	"github.com/scarab-search/scarab-core/internal/core/ports/driving"
	"github.com/scarab-search/scarab-core/internal/engine/indexing"
	"github.com/scarab-search/scarab-core/internal/engine/stats"
	"github.com/scarab-search/scarab-core/internal/runtime"
)

// Ensure indexAdminService implements IndexAdminService
var _ driving.IndexAdminService = (*indexAdminService)(nil)

const (
	defaultRebuildBatchSize   = 100
	defaultRebuildConcurrency = 2
)

// indexAdminService manages index lifecycle: creation, settings/mappings
// updates, cascading deletion, and full rebuilds.
type indexAdminService struct {
	indexStore    driven.IndexStore
	chunkStore    driven.ChunkStore
	statsStore    driven.StatsStore
	documentStore driven.DocumentStore
	pipeline      *indexing.Pipeline
	engine        *runtime.Engine
	logger        *slog.Logger
}

// NewIndexAdminService creates a new IndexAdminService.
func NewIndexAdminService(
	indexStore driven.IndexStore,
	chunkStore driven.ChunkStore,
	statsStore driven.StatsStore,
	documentStore driven.DocumentStore,
	pipeline *indexing.Pipeline,
	engine *runtime.Engine,
	logger *slog.Logger,
) driving.IndexAdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &indexAdminService{
		indexStore:    indexStore,
		chunkStore:    chunkStore,
		statsStore:    statsStore,
		documentStore: documentStore,
		pipeline:      pipeline,
		engine:        engine,
		logger:        logger,
	}
}

func (s *indexAdminService) CreateIndex(ctx context.Context, name string, settings domain.IndexSettings, mappings domain.Mappings) (*domain.IndexMetadata, error) {
	if err := validateIndexName(name); err != nil {
		return nil, err
	}

	meta := domain.NewIndexMetadata(name, settings, mappings)
	if err := s.indexStore.Create(ctx, meta); err != nil {
		return nil, err
	}

	s.logger.Info("index created", "index", name)
	return meta, nil
}

func (s *indexAdminService) GetIndex(ctx context.Context, name string) (*domain.IndexMetadata, error) {
	return s.indexStore.Get(ctx, name)
}

func (s *indexAdminService) ListIndices(ctx context.Context) ([]*domain.IndexMetadata, error) {
	return s.indexStore.List(ctx)
}

// DeleteIndex removes the index metadata and cascades to its chunks, stats,
// document bodies, and in-memory state (the lifecycle contract).
func (s *indexAdminService) DeleteIndex(ctx context.Context, name string) error {
	if err := s.indexStore.Delete(ctx, name); err != nil {
		return err
	}

	if err := s.chunkStore.DeleteByIndex(ctx, name); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", name, err)
	}
	if err := s.statsStore.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete stats for %s: %w", name, err)
	}
	if err := s.documentStore.DeleteByIndex(ctx, name); err != nil {
		return fmt.Errorf("delete documents for %s: %w", name, err)
	}

	s.engine.Dictionary.Clear(name)
	s.engine.Stats.Delete(name)

	s.logger.Info("index deleted", "index", name)
	return nil
}

func (s *indexAdminService) UpdateSettings(ctx context.Context, name string, settings domain.IndexSettings) (*domain.IndexMetadata, error) {
	meta, err := s.indexStore.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	meta.Settings = settings
	meta.Touch()
	if err := s.indexStore.Update(ctx, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (s *indexAdminService) UpdateMappings(ctx context.Context, name string, mappings domain.Mappings) (*domain.IndexMetadata, error) {
	meta, err := s.indexStore.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if mappings.Properties == nil {
		return nil, fmt.Errorf("update mappings for %s: empty properties: %w", name, domain.ErrInvalidInput)
	}

	meta.Mappings = mappings
	meta.Touch()
	if err := s.indexStore.Update(ctx, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// RebuildIndex re-derives an index's postings from the stored document
// bodies: the in-memory state is reset, every document is re-run through
// the indexing pipeline in batches (optionally concurrent), and the corpus
// stats snapshot is saved. When EnableTermPostingsPersistence is false the
// rebuild only repopulates the in-memory dictionary and stats; no
// persistence jobs are enqueued.
func (s *indexAdminService) RebuildIndex(ctx context.Context, name string, opts driving.RebuildOptions) (driving.RebuildStatus, error) {
	meta, err := s.indexStore.Get(ctx, name)
	if err != nil {
		return driving.RebuildStatus{}, err
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultRebuildBatchSize
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultRebuildConcurrency
	}

	total, err := s.documentStore.Count(ctx, name)
	if err != nil {
		return driving.RebuildStatus{}, fmt.Errorf("count documents for %s: %w", name, err)
	}
	totalBatches := (total + batchSize - 1) / batchSize

	// Reset the in-memory view; the chunked store is replaced batch by
	// batch as the persistence worker drains the rebuild's jobs.
	s.engine.Dictionary.Clear(name)
	s.engine.Stats.Set(name, domain.NewCorpusStats())

	rebuildID := newOpID()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for batchNo := 0; batchNo < totalBatches; batchNo++ {
		offset := batchNo * batchSize
		g.Go(func() error {
			docs, err := s.documentStore.List(gctx, name, batchSize, offset)
			if err != nil {
				return fmt.Errorf("list documents for %s: %w", name, err)
			}

			batch := s.pipeline.NewBatch(name, rebuildID)
			for _, doc := range docs {
				if err := s.pipeline.IndexDocument(batch, meta, doc.ID, doc.Source, nil); err != nil {
					s.logger.Warn("document skipped during rebuild", "index", name, "doc_id", doc.ID, "error", err)
					continue
				}
			}

			if !opts.EnableTermPostingsPersistence {
				return nil
			}
			if _, err := s.pipeline.Commit(gctx, batch); err != nil {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return driving.RebuildStatus{}, err
	}

	if err := s.statsStore.Save(ctx, name, s.engine.Stats.Get(name)); err != nil {
		s.logger.Warn("failed to save rebuilt stats snapshot", "index", name, "error", err)
	}

	meta.DocumentCount = s.engine.Stats.Get(name).Total()
	meta.Touch()
	if err := s.indexStore.Update(ctx, meta); err != nil {
		s.logger.Warn("failed to update index metadata after rebuild", "index", name, "error", err)
	}

	s.logger.Info("index rebuilt", "index", name, "documents", total, "batches", totalBatches)
	return driving.RebuildStatus{
		BatchID:        rebuildID,
		TotalBatches:   totalBatches,
		TotalDocuments: total,
		Status:         "completed",
	}, nil
}

// ResetAll deletes every index and its data.
func (s *indexAdminService) ResetAll(ctx context.Context) error {
	metas, err := s.indexStore.List(ctx)
	if err != nil {
		return err
	}
	for _, meta := range metas {
		if err := s.DeleteIndex(ctx, meta.Name); err != nil {
			return err
		}
	}
	s.logger.Warn("all indices reset", "count", len(metas))
	return nil
}

// RecomputeStats rebuilds an index's corpus statistics from the committed
// chunks and stores the snapshot, the authoritative rebuild path.
func (s *indexAdminService) RecomputeStats(ctx context.Context, name string) error {
	fresh, err := stats.Recompute(ctx, s.chunkStore, name)
	if err != nil {
		return err
	}
	s.engine.Stats.Set(name, fresh)
	return s.statsStore.Save(ctx, name, fresh)
}

func validateIndexName(name string) error {
	if name == "" {
		return fmt.Errorf("index name is required: %w", domain.ErrInvalidInput)
	}
	if strings.ContainsAny(name, ":/ \t") {
		return fmt.Errorf("index name %q contains invalid characters: %w", name, domain.ErrInvalidInput)
	}
	return nil
}
