package services

import (
	"context"
	"errors"
	"testing"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven/mocks"
	"github.com/scarab-search/scarab-core/internal/core/ports/driving"
	"github.com/scarab-search/scarab-core/internal/engine/dictionary"
	"github.com/scarab-search/scarab-core/internal/engine/indexing"
	"github.com/scarab-search/scarab-core/internal/engine/persistence"
	"github.com/scarab-search/scarab-core/internal/engine/query"
	"github.com/scarab-search/scarab-core/internal/engine/scorer"
	"github.com/scarab-search/scarab-core/internal/runtime"
)

// testEnv wires the full engine against in-memory adapters, with a
// synchronous drain standing in for the persistence worker loop.
type testEnv struct {
	admin  driving.IndexAdminService
	docs   driving.DocumentService
	search driving.SearchService

	engine *runtime.Engine
	queue  *mocks.MockPersistenceQueue
	chunks *mocks.MockChunkStore
	worker *persistence.Worker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	engine := runtime.NewEngine(runtime.Config{
		Dictionary: dictionary.DefaultConfig(),
		Scorer:     scorer.Params{},
	})

	indexStore := mocks.NewMockIndexStore()
	chunks := mocks.NewMockChunkStore()
	statsStore := mocks.NewMockStatsStore()
	docStore := mocks.NewMockDocumentStore()
	queue := mocks.NewMockPersistenceQueue()
	payloads := mocks.NewMockPayloadStore()
	pending := mocks.NewMockPendingJobStore()

	pipeline := indexing.NewPipeline(indexing.Config{
		Dictionary: engine.Dictionary,
		Stats:      engine.Stats,
		Queue:      queue,
		Payloads:   payloads,
		Pending:    pending,
	})

	worker := persistence.NewWorker(persistence.Config{
		Queue:      queue,
		Payloads:   payloads,
		Pending:    pending,
		Chunks:     chunks,
		Lock:       mocks.NewMockDistributedLock(),
		Dictionary: engine.Dictionary,
	})

	search := NewSearchService(indexStore, chunks, docStore, engine, nil)
	docs := NewDocumentService(indexStore, docStore, pipeline, engine, search, nil)
	admin := NewIndexAdminService(indexStore, chunks, statsStore, docStore, pipeline, engine, nil)

	return &testEnv{
		admin:  admin,
		docs:   docs,
		search: search,
		engine: engine,
		queue:  queue,
		chunks: chunks,
		worker: worker,
	}
}

// drain synchronously commits every queued persistence job.
func (e *testEnv) drain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for {
		job, err := e.queue.Dequeue(ctx, 0)
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		if job == nil {
			return
		}
		if err := e.worker.ProcessJob(ctx, *job); err != nil {
			t.Fatalf("process job %s: %v", job.BatchID, err)
		}
	}
}

func (e *testEnv) createIndex(t *testing.T, name string) {
	t.Helper()
	_, err := e.admin.CreateIndex(context.Background(), name, domain.IndexSettings{}, domain.Mappings{
		Properties: map[string]domain.FieldMapping{
			"title": {Type: "text"},
			"count": {Type: "integer"},
		},
	})
	if err != nil {
		t.Fatalf("create index %s: %v", name, err)
	}
}

func (e *testEnv) indexDoc(t *testing.T, index, id string, doc map[string]any) {
	t.Helper()
	if err := e.docs.IndexDocument(context.Background(), index, id, doc); err != nil {
		t.Fatalf("index document %s: %v", id, err)
	}
}

func matchQuery(field, value string) domain.Query {
	return domain.Term(field, value)
}

func TestSearch_TermRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "Hello World", "count": float64(10)})
	e.drain(t)

	result, err := e.search.Search(context.Background(), "a", domain.SearchRequest{
		Query: matchQuery("title", "hello"),
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("total = %d, want 1", result.Total)
	}
	if result.Hits[0].ID != "1" {
		t.Errorf("hit id = %q, want 1", result.Hits[0].ID)
	}
	if result.Hits[0].Source["title"] != "Hello World" {
		t.Errorf("source not resolved: %+v", result.Hits[0].Source)
	}
	if result.MaxScore <= 0 {
		t.Errorf("max score = %v, want > 0", result.MaxScore)
	}
}

func TestSearch_ZeroMatchesIsCleanlyEmpty(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "Hello"})
	e.drain(t)

	result, err := e.search.Search(context.Background(), "a", domain.SearchRequest{
		Query: matchQuery("title", "absent"),
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 0 || len(result.Hits) != 0 {
		t.Errorf("got total=%d hits=%d, want 0/0", result.Total, len(result.Hits))
	}
}

func TestSearch_WildcardAcrossBulkDocs(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")

	statuses, err := e.docs.BulkIndex(context.Background(), "a", []driving.BulkDocument{
		{ID: "1", Document: map[string]any{"title": "Bulk One"}},
		{ID: "2", Document: map[string]any{"title": "Bulk Two"}},
	})
	if err != nil {
		t.Fatalf("bulk index: %v", err)
	}
	for _, st := range statuses {
		if !st.Success {
			t.Fatalf("bulk item %s failed: %s", st.ID, st.Error)
		}
	}
	e.drain(t)

	result, err := e.search.Search(context.Background(), "a", domain.SearchRequest{
		Query: domain.Wildcard("title", "bulk*"),
		Size:  10,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total < 2 {
		t.Errorf("total = %d, want >= 2", result.Total)
	}
}

func TestSearch_WildcardScoresAboveBaseline(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "smart phone"})
	e.indexDoc(t, "a", "2", map[string]any{"title": "smart watch"})
	e.indexDoc(t, "a", "3", map[string]any{"title": "dumb phone"})
	e.drain(t)

	result, err := e.search.Search(context.Background(), "a", domain.SearchRequest{
		Query: domain.Wildcard("title", "smart*"),
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("total = %d, want 2", result.Total)
	}
	for _, hit := range result.Hits {
		if hit.Score <= 0 {
			t.Errorf("hit %s score = %v, want > 0", hit.ID, hit.Score)
		}
		if hit.ID == "3" {
			t.Error("dumb phone must not match smart*")
		}
	}
}

func TestSearch_DeletedIndexReturnsNotFound(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "Hello"})
	e.drain(t)

	if err := e.admin.DeleteIndex(context.Background(), "a"); err != nil {
		t.Fatalf("delete index: %v", err)
	}

	_, err := e.search.Search(context.Background(), "a", domain.SearchRequest{
		Query: matchQuery("title", "hello"),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSearch_DeletedDocumentDisappears(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "Hello World"})
	e.indexDoc(t, "a", "2", map[string]any{"title": "Hello Again"})
	e.drain(t)

	if err := e.docs.DeleteDocument(context.Background(), "a", "1"); err != nil {
		t.Fatalf("delete document: %v", err)
	}
	e.drain(t)

	result, err := e.search.Search(context.Background(), "a", domain.SearchRequest{
		Query: matchQuery("title", "hello"),
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, hit := range result.Hits {
		if hit.ID == "1" {
			t.Error("deleted document still returned")
		}
	}
	if e.engine.Stats.Get("a").Total() != 1 {
		t.Errorf("TotalDocuments = %d, want 1", e.engine.Stats.Get("a").Total())
	}
}

func TestSearch_IdempotentIndexing(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	doc := map[string]any{"title": "Hello World"}
	e.indexDoc(t, "a", "1", doc)
	e.indexDoc(t, "a", "1", doc)
	e.drain(t)

	st := e.engine.Stats.Get("a")
	if st.Total() != 1 {
		t.Errorf("TotalDocuments = %d, want 1", st.Total())
	}
	if df := st.DF(domain.NewTermKey("a", "title", "hello")); df != 1 {
		t.Errorf("df(title:hello) = %d, want 1", df)
	}
}

func TestSearch_BooleanIdentities(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "alpha beta"})
	e.indexDoc(t, "a", "2", map[string]any{"title": "alpha gamma"})
	e.drain(t)

	ctx := context.Background()
	q := matchQuery("title", "alpha")

	base, err := e.search.Search(ctx, "a", domain.SearchRequest{Query: q})
	if err != nil {
		t.Fatalf("base search: %v", err)
	}

	// or(Q, ∅) ≡ Q
	orEmpty, err := e.search.Search(ctx, "a", domain.SearchRequest{
		Query: domain.Boolean(domain.BoolOr, q, matchQuery("title", "absentterm")),
	})
	if err != nil {
		t.Fatalf("or search: %v", err)
	}
	if orEmpty.Total != base.Total {
		t.Errorf("or(Q, empty) total = %d, want %d", orEmpty.Total, base.Total)
	}

	// and(Q, matchAll) ≡ Q
	andAll, err := e.search.Search(ctx, "a", domain.SearchRequest{
		Query: domain.Boolean(domain.BoolAnd, q, domain.MatchAll(1)),
	})
	if err != nil {
		t.Fatalf("and search: %v", err)
	}
	if andAll.Total != base.Total {
		t.Errorf("and(Q, matchAll) total = %d, want %d", andAll.Total, base.Total)
	}
}

func TestSearch_PhraseQuery(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "quick brown fox"})
	e.indexDoc(t, "a", "2", map[string]any{"title": "brown quick fox"})
	e.drain(t)

	result, err := e.search.Search(context.Background(), "a", domain.SearchRequest{
		Query: domain.Phrase("title", []string{"quick", "brown"}, nil),
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("total = %d, want 1 (order matters for phrases)", result.Total)
	}
	if result.Hits[0].ID != "1" {
		t.Errorf("hit id = %q, want 1", result.Hits[0].ID)
	}
}

func TestSearch_FilterAndFacets(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "pencil shop", "tier": "confirmed"})
	e.indexDoc(t, "a", "2", map[string]any{"title": "pencil depot", "tier": "unconfirmed"})
	e.drain(t)

	result, err := e.search.Search(context.Background(), "a", domain.SearchRequest{
		Query:  matchQuery("title", "pencil"),
		Filter: map[string]string{"tier": "confirmed"},
		Facets: []string{"tier"},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 1 || result.Hits[0].ID != "1" {
		t.Fatalf("filtered result = %+v, want only doc 1", result.Hits)
	}
	counts, ok := result.Facets["tier"].(map[string]int)
	if !ok {
		t.Fatalf("facets = %+v, want tier counts", result.Facets)
	}
	if counts["confirmed"] != 1 {
		t.Errorf("facet confirmed = %d, want 1", counts["confirmed"])
	}
}

func TestSearch_PaginationWindow(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		e.indexDoc(t, "a", id, map[string]any{"title": "common term " + id})
	}
	e.drain(t)

	result, err := e.search.Search(context.Background(), "a", domain.SearchRequest{
		Query: matchQuery("title", "common"),
		From:  2,
		Size:  2,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 5 {
		t.Errorf("total = %d, want 5", result.Total)
	}
	if len(result.Hits) != 2 {
		t.Errorf("page size = %d, want 2", len(result.Hits))
	}
	p := result.Pagination
	if p.CurrentPage != 2 || p.TotalPages != 3 || !p.HasNext || !p.HasPrevious {
		t.Errorf("pagination = %+v", p)
	}
}

func TestSearch_HighlightWrapsMatches(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "Hello World"})
	e.drain(t)

	result, err := e.search.Search(context.Background(), "a", domain.SearchRequest{
		Query:     matchQuery("title", "hello"),
		Highlight: true,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	got := result.Hits[0].Highlights["title"]
	want := "<em>Hello</em> World"
	if got != want {
		t.Errorf("highlight = %q, want %q", got, want)
	}
}

func TestSearch_BareStringQueryParsesAcrossFields(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "Hello World"})
	e.drain(t)

	parsed := query.Parse("hello", nil)
	result, err := e.search.Search(context.Background(), "a", domain.SearchRequest{Query: parsed})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("total = %d, want 1 (bare string should reach mapped fields)", result.Total)
	}
}
