// Package stats maintains the Index Stats: corpus counters used by
// the BM25 scorer, kept up to date incrementally by the indexing pipeline
// and rebuildable from the chunked store for authoritative recompute.
package stats

import (
	"context"
	"fmt"
	"sync"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
)

// Registry holds one *domain.CorpusStats per index. The registry's mutex
// guards the index map itself; the returned CorpusStats carries its own
// lock, so holding a pointer across concurrent indexing and scoring is
// safe.
type Registry struct {
	mu    sync.RWMutex
	byIdx map[string]*domain.CorpusStats
}

// NewRegistry returns an empty stats registry.
func NewRegistry() *Registry {
	return &Registry{byIdx: make(map[string]*domain.CorpusStats)}
}

// Get returns the stats for an index, creating an empty entry if absent.
func (r *Registry) Get(index string) *domain.CorpusStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byIdx[index]
	if !ok {
		s = domain.NewCorpusStats()
		r.byIdx[index] = s
	}
	return s
}

// Set replaces the stats for an index wholesale, used after Recompute.
func (r *Registry) Set(index string, s *domain.CorpusStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byIdx[index] = s
}

// Delete drops an index's stats entirely, on index deletion.
func (r *Registry) Delete(index string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byIdx, index)
}

// Recompute rebuilds an index's corpus statistics from the chunked store,
// the source of truth used after bulk operations and manual rebuilds. It
// does not touch the per-document field-length averages that the indexing
// pipeline maintains incrementally, since those require the original field
// token counts, not just posting positions; callers needing an exact
// avgFieldLength rebuild must additionally walk the document store.
func Recompute(ctx context.Context, store driven.ChunkStore, index string) (*domain.CorpusStats, error) {
	terms, err := store.FindTermsByIndex(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("recompute stats for %s: list terms: %w", index, err)
	}

	fresh := domain.NewCorpusStats()
	distinctDocs := make(map[string]struct{})

	for _, term := range terms {
		key, err := domain.ParseTermKey(term)
		if err != nil {
			continue
		}

		chunks, err := store.ReadAllChunks(ctx, index, term)
		if err != nil {
			return nil, fmt.Errorf("recompute stats for %s: read chunks of %s: %w", index, term, err)
		}

		df := 0
		for _, c := range chunks {
			df += len(c.Postings)
			for _, p := range c.Postings {
				distinctDocs[p.DocID] = struct{}{}
			}
		}
		if df > 0 {
			fresh.DocumentFrequency[key.String()] = df
		}
	}

	fresh.TotalDocuments = len(distinctDocs)
	return fresh, nil
}
