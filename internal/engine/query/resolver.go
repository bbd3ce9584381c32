package query

import (
	"context"
	"fmt"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
	"github.com/scarab-search/scarab-core/internal/engine/dictionary"
	"github.com/scarab-search/scarab-core/internal/engine/postings"
	"github.com/scarab-search/scarab-core/internal/engine/wildcard"
)

// Resolver implements PostingSource by preferring the larger of the
// in-memory dictionary's cached list and the chunked store's committed
// list for a term key: bulk ingestion may have persisted a
// longer list than the in-memory cache retained after eviction, so the
// store is never treated as stale.
type Resolver struct {
	Dictionary *dictionary.TermDictionary
	Store      driven.ChunkStore
	Documents  driven.DocumentStore
}

// Resolve returns the larger of the cached and stored posting lists for a
// term key.
func (r *Resolver) Resolve(ctx context.Context, key domain.TermKey) (*postings.List, error) {
	cached := r.Dictionary.GetPostingList(key.Index, key.Field, key.Token)

	chunks, err := r.Store.ReadAllChunks(ctx, key.Index, key.String())
	if err != nil {
		// The cache can still answer the query; a transient store failure
		// degrades to the cached view rather than failing the search.
		if cached != nil {
			return cached, nil
		}
		return nil, fmt.Errorf("read chunks for %s: %w", key, err)
	}
	stored := postings.FromChunks(chunks)

	if cached == nil {
		return stored, nil
	}
	if stored.Size() > cached.Size() {
		return stored, nil
	}
	return cached, nil
}

// ExpandWildcard resolves a compiled pattern to matching term keys, per
// the wildcard step: suffix-wildcard shortcut first, then a
// prefix-indexed store lookup filtered by the pattern's regex.
func (r *Resolver) ExpandWildcard(ctx context.Context, index, field string, p wildcard.Pattern) ([]string, error) {
	exists := func(ctx context.Context, index, field, token string) bool {
		key := domain.NewTermKey(index, field, token)
		if list := r.Dictionary.GetPostingList(index, field, token); list != nil && list.Size() > 0 {
			return true
		}
		chunks, err := r.Store.ReadAllChunks(ctx, index, key.String())
		return err == nil && len(chunks) > 0
	}
	return wildcard.Expand(ctx, r.Store, exists, index, field, p)
}

// AllDocIDs enumerates every document id known for an index, for the
// match-all and boolean-NOT steps. limit <= 0 means unbounded (still
// subject to the caller's overall search deadline and hard fetch ceiling).
func (r *Resolver) AllDocIDs(ctx context.Context, index string, limit int) ([]string, error) {
	terms, err := r.Store.FindTermsByIndex(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("list terms for %s: %w", index, err)
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, term := range terms {
		chunks, err := r.Store.ReadAllChunks(ctx, index, term)
		if err != nil {
			return nil, fmt.Errorf("read chunks for %s: %w", term, err)
		}
		for _, c := range chunks {
			for _, p := range c.Postings {
				if _, ok := seen[p.DocID]; ok {
					continue
				}
				seen[p.DocID] = struct{}{}
				ids = append(ids, p.DocID)
				if limit > 0 && len(ids) >= limit {
					return ids, nil
				}
			}
		}
	}
	return ids, nil
}
