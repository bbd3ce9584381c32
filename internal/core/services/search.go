package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
	"github.com/scarab-search/scarab-core/internal/core/ports/driving"
	"github.com/scarab-search/scarab-core/internal/engine/query"
	"github.com/scarab-search/scarab-core/internal/engine/scorer"
	"github.com/scarab-search/scarab-core/internal/runtime"
)

// Ensure searchService implements SearchService
var _ driving.SearchService = (*searchService)(nil)

const (
	defaultPageSize = 10

	// maxFetchedDocuments is the hard ceiling on documents a single search
	// materializes, bounding memory.
	maxFetchedDocuments = 10_000

	defaultSearchTimeout = 5 * time.Second
)

// searchService runs the query pipeline: parse → plan →
// execute → post-filter → sort → paginate → resolve sources.
type searchService struct {
	indexStore    driven.IndexStore
	chunkStore    driven.ChunkStore
	documentStore driven.DocumentStore
	engine        *runtime.Engine
	logger        *slog.Logger
	timeout       time.Duration
}

// NewSearchService creates a new SearchService.
func NewSearchService(
	indexStore driven.IndexStore,
	chunkStore driven.ChunkStore,
	documentStore driven.DocumentStore,
	engine *runtime.Engine,
	logger *slog.Logger,
) driving.SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &searchService{
		indexStore:    indexStore,
		chunkStore:    chunkStore,
		documentStore: documentStore,
		engine:        engine,
		logger:        logger,
		timeout:       defaultSearchTimeout,
	}
}

// statsSource adapts the stats registry to the planner/executor interface.
type statsSource struct {
	engine *runtime.Engine
}

func (s statsSource) DF(term domain.TermKey) int {
	return s.engine.Stats.Get(term.Index).DF(term)
}

func (s statsSource) TotalDocuments(index string) int {
	return s.engine.Stats.Get(index).Total()
}

// ctxDeadline adapts a context to the executor's Deadline check.
type ctxDeadline struct{ ctx context.Context }

func (d ctxDeadline) Exceeded() bool { return d.ctx.Err() != nil }

func (s *searchService) Search(ctx context.Context, index string, req domain.SearchRequest) (*domain.SearchResult, error) {
	meta, err := s.indexStore.Get(ctx, index)
	if err != nil {
		return nil, err
	}
	if !meta.IsOpen() {
		return nil, fmt.Errorf("search index %s: %w", index, domain.ErrIndexClosed)
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = s.searchableFields(meta)
	}
	q := expandAllFields(req.Query, fields)

	st := statsSource{engine: s.engine}
	plan := query.Plan(q, index, st)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	deps := query.Deps{
		Source: &query.Resolver{
			Dictionary: s.engine.Dictionary,
			Store:      s.chunkStore,
			Documents:  s.documentStore,
		},
		Stats:   st,
		CorpusN: func(idx string) int { return s.engine.Stats.Get(idx).Total() },
		FieldLen: func(idx, docID, field string) float64 {
			return float64(s.engine.Stats.Get(idx).FieldLen(docID, field))
		},
		AvgLen: func(idx, field string) float64 { return s.engine.Stats.Get(idx).AvgLength(idx, field) },
		Boost: scorer.NewBoostCache(func(ctx context.Context, idx string) (domain.Mappings, error) {
			m, err := s.indexStore.Get(ctx, idx)
			if err != nil {
				return domain.Mappings{}, err
			}
			return m.Mappings, nil
		}),
		Scorer: s.engine.Scorer,
	}

	scored, err := query.Execute(ctx, plan, index, deps, ctxDeadline{ctx: ctx})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("search %s: %w", index, domain.ErrTimeout)
		}
		return nil, err
	}

	if len(scored) > maxFetchedDocuments {
		sortScored(scored)
		scored = scored[:maxFetchedDocuments]
	}

	// Post-filter and facet stages need source bodies for every candidate;
	// pagination-only searches resolve just the final page.
	var sources map[string]map[string]any
	if len(req.Filter) > 0 || len(req.Facets) > 0 {
		sources, err = s.resolveSources(ctx, index, scored)
		if err != nil {
			return nil, err
		}
		if len(req.Filter) > 0 {
			scored = applyFilter(scored, sources, req.Filter)
		}
	}

	var facets map[string]any
	if len(req.Facets) > 0 {
		facets = computeFacets(scored, sources, req.Facets)
	}

	size := req.Size
	if size <= 0 {
		size = defaultPageSize
	}
	page, total, maxScore := query.SortAndPaginate(scored, req.From, size)

	if sources == nil {
		sources, err = s.resolveSources(ctx, index, page)
		if err != nil {
			return nil, err
		}
	}

	hits := make([]domain.Hit, len(page))
	for i, sd := range page {
		hit := domain.Hit{ID: sd.DocID, Score: sd.Score, Source: sources[sd.DocID]}
		if req.Highlight {
			hit.Highlights = highlightSource(q, fields, hit.Source)
		}
		hits[i] = hit
	}

	return &domain.SearchResult{
		Total:      total,
		MaxScore:   maxScore,
		Hits:       hits,
		Pagination: paginate(req.From, size, total),
		Facets:     facets,
	}, nil
}

// searchableFields returns the fields a query without an explicit field set
// targets: every mapped property (sub-fields excluded — they are reachable
// by their dotted path explicitly), falling back to the fields the stats
// registry has observed for dynamically-mapped documents.
func (s *searchService) searchableFields(meta *domain.IndexMetadata) []string {
	var fields []string
	for name := range meta.Mappings.Properties {
		fields = append(fields, name)
	}
	if len(fields) == 0 {
		fields = s.engine.Stats.Get(meta.Name).ObservedFields(meta.Name)
	}
	sort.Strings(fields)
	return fields
}

// expandAllFields rewrites leaf queries targeting the "_all" pseudo-field
// (or no field) into a boolean OR across the request's field set.
func expandAllFields(q domain.Query, fields []string) domain.Query {
	switch q.Kind {
	case domain.QueryKindTerm, domain.QueryKindWildcard, domain.QueryKindPhrase:
		if q.Field != "_all" && q.Field != "" {
			return q
		}
		if len(fields) == 0 {
			return q
		}
		if len(fields) == 1 {
			q.Field = fields[0]
			return q
		}
		children := make([]domain.Query, len(fields))
		for i, f := range fields {
			child := q
			child.Field = f
			children[i] = child
		}
		return domain.Boolean(domain.BoolOr, children...)

	case domain.QueryKindBoolean:
		children := make([]domain.Query, len(q.Children))
		for i, c := range q.Children {
			children[i] = expandAllFields(c, fields)
		}
		q.Children = children
		return q

	default:
		return q
	}
}

func (s *searchService) resolveSources(ctx context.Context, index string, docs []query.ScoredDoc) (map[string]map[string]any, error) {
	if len(docs) == 0 {
		return map[string]map[string]any{}, nil
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.DocID
	}
	sources, err := s.documentStore.GetMany(ctx, index, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve sources for %s: %w", index, err)
	}
	return sources, nil
}

// applyFilter keeps only documents whose source fields equal every filter
// value (string comparison on the rendered value).
func applyFilter(docs []query.ScoredDoc, sources map[string]map[string]any, filter map[string]string) []query.ScoredDoc {
	out := docs[:0]
	for _, d := range docs {
		source := sources[d.DocID]
		if source == nil {
			continue
		}
		match := true
		for field, want := range filter {
			got, ok := source[field]
			if !ok || fmt.Sprintf("%v", got) != want {
				match = false
				break
			}
		}
		if match {
			out = append(out, d)
		}
	}
	return out
}

// computeFacets tallies distinct values of each requested field across the
// matched set, before pagination.
func computeFacets(docs []query.ScoredDoc, sources map[string]map[string]any, facetFields []string) map[string]any {
	facets := make(map[string]any, len(facetFields))
	for _, field := range facetFields {
		counts := map[string]int{}
		for _, d := range docs {
			source := sources[d.DocID]
			if source == nil {
				continue
			}
			if v, ok := source[field]; ok {
				counts[fmt.Sprintf("%v", v)]++
			}
		}
		facets[field] = counts
	}
	return facets
}

func paginate(from, size, total int) domain.Pagination {
	if from < 0 {
		from = 0
	}
	totalPages := 0
	if size > 0 {
		totalPages = (total + size - 1) / size
	}
	currentPage := from/max(size, 1) + 1
	return domain.Pagination{
		CurrentPage:  currentPage,
		TotalPages:   totalPages,
		PageSize:     size,
		HasNext:      from+size < total,
		HasPrevious:  from > 0,
		TotalResults: total,
	}
}

func sortScored(docs []query.ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocID < docs[j].DocID
	})
}
