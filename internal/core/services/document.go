package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
	"github.com/scarab-search/scarab-core/internal/core/ports/driving"
	"github.com/scarab-search/scarab-core/internal/engine/indexing"
	"github.com/scarab-search/scarab-core/internal/engine/query"
	"github.com/scarab-search/scarab-core/internal/runtime"
)

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

// documentService handles per-document and bulk indexing against one index,
// driving the indexing pipeline and keeping the index metadata's
// document count in step with the corpus stats.
type documentService struct {
	indexStore    driven.IndexStore
	documentStore driven.DocumentStore
	pipeline      *indexing.Pipeline
	engine        *runtime.Engine
	search        driving.SearchService
	logger        *slog.Logger
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(
	indexStore driven.IndexStore,
	documentStore driven.DocumentStore,
	pipeline *indexing.Pipeline,
	engine *runtime.Engine,
	search driving.SearchService,
	logger *slog.Logger,
) driving.DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentService{
		indexStore:    indexStore,
		documentStore: documentStore,
		pipeline:      pipeline,
		engine:        engine,
		search:        search,
		logger:        logger,
	}
}

func (s *documentService) IndexDocument(ctx context.Context, index, id string, document map[string]any) error {
	return s.indexOne(ctx, index, id, document, false)
}

// UpdateDocument re-indexes an existing document; absent documents are
// rejected with NotFound, unlike IndexDocument which upserts.
func (s *documentService) UpdateDocument(ctx context.Context, index, id string, document map[string]any) error {
	return s.indexOne(ctx, index, id, document, true)
}

func (s *documentService) indexOne(ctx context.Context, index, id string, document map[string]any, mustExist bool) error {
	meta, err := s.writableIndex(ctx, index)
	if err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("index document: empty id: %w", domain.ErrInvalidInput)
	}

	prior, err := s.documentStore.Get(ctx, index, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if mustExist && prior == nil {
		return fmt.Errorf("update document %s/%s: %w", index, id, domain.ErrNotFound)
	}

	batch := s.pipeline.NewBatch(index, "")
	if err := s.pipeline.IndexDocument(batch, meta, id, document, prior); err != nil {
		return err
	}
	if err := s.documentStore.Put(ctx, index, id, document); err != nil {
		return fmt.Errorf("store document %s/%s: %w", index, id, err)
	}
	if _, err := s.pipeline.Commit(ctx, batch); err != nil {
		return err
	}

	s.syncDocumentCount(ctx, meta)
	return nil
}

func (s *documentService) DeleteDocument(ctx context.Context, index, id string) error {
	meta, err := s.writableIndex(ctx, index)
	if err != nil {
		return err
	}

	prior, err := s.documentStore.Get(ctx, index, id)
	if err != nil {
		return err
	}

	batch := s.pipeline.NewBatch(index, "")
	if err := s.pipeline.DeleteDocument(batch, meta, id, prior); err != nil {
		return err
	}
	if err := s.documentStore.Delete(ctx, index, id); err != nil {
		return err
	}
	if _, err := s.pipeline.Commit(ctx, batch); err != nil {
		return err
	}

	s.syncDocumentCount(ctx, meta)
	return nil
}

// BulkIndex indexes multiple documents in one batch. Per-document failures
// are isolated: a bad document is reported in its item status and the rest
// of the batch still commits.
func (s *documentService) BulkIndex(ctx context.Context, index string, documents []driving.BulkDocument) ([]driving.BulkItemStatus, error) {
	meta, err := s.writableIndex(ctx, index)
	if err != nil {
		return nil, err
	}

	bulkOpID := newOpID()
	batch := s.pipeline.NewBatch(index, bulkOpID)
	statuses := make([]driving.BulkItemStatus, len(documents))

	for i, doc := range documents {
		statuses[i] = driving.BulkItemStatus{ID: doc.ID}

		if doc.ID == "" {
			statuses[i].Error = "empty document id"
			continue
		}

		prior, err := s.documentStore.Get(ctx, index, doc.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			statuses[i].Error = err.Error()
			continue
		}

		if err := s.pipeline.IndexDocument(batch, meta, doc.ID, doc.Document, prior); err != nil {
			statuses[i].Error = err.Error()
			continue
		}
		if err := s.documentStore.Put(ctx, index, doc.ID, doc.Document); err != nil {
			statuses[i].Error = err.Error()
			continue
		}
		statuses[i].Success = true
	}

	if _, err := s.pipeline.Commit(ctx, batch); err != nil {
		return statuses, err
	}

	s.syncDocumentCount(ctx, meta)
	return statuses, nil
}

// DeleteByQuery deletes every document matching a raw query object and
// returns how many were removed.
func (s *documentService) DeleteByQuery(ctx context.Context, index string, rawQuery map[string]any) (int, error) {
	if _, err := s.writableIndex(ctx, index); err != nil {
		return 0, err
	}

	parsed := query.Parse(rawQuery, nil)
	result, err := s.search.Search(ctx, index, domain.SearchRequest{
		Query: parsed,
		Size:  maxFetchedDocuments,
	})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, hit := range result.Hits {
		if err := s.DeleteDocument(ctx, index, hit.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (s *documentService) writableIndex(ctx context.Context, index string) (*domain.IndexMetadata, error) {
	meta, err := s.indexStore.Get(ctx, index)
	if err != nil {
		return nil, err
	}
	if !meta.IsOpen() {
		return nil, fmt.Errorf("index %s: %w", index, domain.ErrIndexClosed)
	}
	return meta, nil
}

// syncDocumentCount mirrors the stats registry's document count onto the
// index metadata. Best-effort: the authoritative count is recomputable from
// committed chunks.
func (s *documentService) syncDocumentCount(ctx context.Context, meta *domain.IndexMetadata) {
	count := s.engine.Stats.Get(meta.Name).Total()
	if meta.DocumentCount == count {
		return
	}
	meta.DocumentCount = count
	meta.Touch()
	if err := s.indexStore.Update(ctx, meta); err != nil {
		s.logger.Warn("failed to update index document count", "index", meta.Name, "error", err)
	}
}

func newOpID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
