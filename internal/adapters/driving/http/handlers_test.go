package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scarab-search/scarab-core/internal/core/ports/driven/mocks"
	"github.com/scarab-search/scarab-core/internal/core/services"
	"github.com/scarab-search/scarab-core/internal/engine/dictionary"
	"github.com/scarab-search/scarab-core/internal/engine/indexing"
	"github.com/scarab-search/scarab-core/internal/engine/persistence"
	"github.com/scarab-search/scarab-core/internal/engine/scorer"
	"github.com/scarab-search/scarab-core/internal/runtime"
)

// newTestServer wires a full server against in-memory adapters. The
// returned drain runs the persistence worker synchronously over whatever
// the indexing pipeline enqueued.
func newTestServer(t *testing.T) (*Server, func()) {
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

	searchService := services.NewSearchService(indexStore, chunks, docStore, engine, nil)
	documentService := services.NewDocumentService(indexStore, docStore, pipeline, engine, searchService, nil)
	adminService := services.NewIndexAdminService(indexStore, chunks, statsStore, docStore, pipeline, engine, nil)

	server := NewServer(Config{Version: "test", ResetKey: "secret"},
		adminService, documentService, searchService, queue, nil, nil)

	drain := func() {
		ctx := context.Background()
		for {
			job, err := queue.Dequeue(ctx, 0)
			if err != nil || job == nil {
				return
			}
			if err := worker.ProcessJob(ctx, *job); err != nil {
				t.Fatalf("process job: %v", err)
			}
		}
	}
	return server, drain
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHandlers_CreateIndex(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, "POST", "/indices", map[string]any{"name": "a"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	// Name collision -> 409.
	rec = doJSON(t, server, "POST", "/indices", map[string]any{"name": "a"})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}
}

func TestHandlers_GetMissingIndexIs404(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, "GET", "/indices/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandlers_SearchEndToEnd(t *testing.T) {
	server, drain := newTestServer(t)

	rec := doJSON(t, server, "POST", "/indices", map[string]any{
		"name": "a",
		"mappings": map[string]any{
			"properties": map[string]any{
				"title": map[string]any{"type": "text"},
				"count": map[string]any{"type": "integer"},
			},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create index: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, server, "POST", "/indices/a/documents", map[string]any{
		"id":       "1",
		"document": map[string]any{"title": "Hello World", "count": 10},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("index document: %d %s", rec.Code, rec.Body.String())
	}
	drain()

	rec = doJSON(t, server, "POST", "/indices/a/_search", map[string]any{
		"query": map[string]any{"match": map[string]any{"field": "title", "value": "hello"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("search: %d %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	data := body["data"].(map[string]any)
	if data["total"].(float64) != 1 {
		t.Errorf("total = %v, want 1", data["total"])
	}
	hits := data["hits"].([]any)
	if hits[0].(map[string]any)["id"] != "1" {
		t.Errorf("hit = %+v, want id 1", hits[0])
	}
	if _, ok := body["took"]; !ok {
		t.Error("response must include took")
	}
}

func TestHandlers_BulkThenWildcard(t *testing.T) {
	server, drain := newTestServer(t)

	doJSON(t, server, "POST", "/indices", map[string]any{"name": "a"})
	rec := doJSON(t, server, "POST", "/indices/a/documents/_bulk", map[string]any{
		"documents": []any{
			map[string]any{"id": "1", "document": map[string]any{"title": "Bulk One"}},
			map[string]any{"id": "2", "document": map[string]any{"title": "Bulk Two"}},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk: %d %s", rec.Code, rec.Body.String())
	}
	drain()

	rec = doJSON(t, server, "POST", "/indices/a/_search", map[string]any{
		"query": map[string]any{"wildcard": map[string]any{"field": "title", "value": "bulk*"}},
		"size":  10,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("search: %d %s", rec.Code, rec.Body.String())
	}
	data := decodeBody(t, rec)["data"].(map[string]any)
	if data["total"].(float64) < 2 {
		t.Errorf("total = %v, want >= 2", data["total"])
	}
}

func TestHandlers_DeleteIndexThenSearch404(t *testing.T) {
	server, drain := newTestServer(t)

	doJSON(t, server, "POST", "/indices", map[string]any{"name": "a"})
	doJSON(t, server, "POST", "/indices/a/documents", map[string]any{
		"id": "1", "document": map[string]any{"title": "Hello"},
	})
	drain()

	rec := doJSON(t, server, "DELETE", "/indices/a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete index: %d", rec.Code)
	}

	rec = doJSON(t, server, "POST", "/indices/a/_search", map[string]any{"query": "hello"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("search after delete = %d, want 404", rec.Code)
	}
}

func TestHandlers_Suggest(t *testing.T) {
	server, drain := newTestServer(t)

	doJSON(t, server, "POST", "/indices", map[string]any{"name": "a"})
	doJSON(t, server, "POST", "/indices/a/documents", map[string]any{
		"id": "1", "document": map[string]any{"title": "smart phone"},
	})
	drain()

	rec := doJSON(t, server, "POST", "/indices/a/_search/_suggest", map[string]any{
		"text": "sma", "field": "title",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("suggest: %d %s", rec.Code, rec.Body.String())
	}
	suggestions := decodeBody(t, rec)["suggestions"].([]any)
	if len(suggestions) == 0 {
		t.Fatal("expected at least one suggestion")
	}
	first := suggestions[0].(map[string]any)
	if first["text"] != "smart" {
		t.Errorf("suggestion = %v, want smart", first)
	}
}

func TestHandlers_ResetGuardedByKey(t *testing.T) {
	server, _ := newTestServer(t)
	doJSON(t, server, "POST", "/indices", map[string]any{"name": "a"})

	req := httptest.NewRequest("POST", "/_reset", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("reset without key = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest("POST", "/_reset", nil)
	req.Header.Set("X-Reset-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("reset with key = %d, want 200", rec.Code)
	}

	check := doJSON(t, server, "GET", "/indices", nil)
	if total := decodeBody(t, check)["total"].(float64); total != 0 {
		t.Errorf("indices after reset = %v, want 0", total)
	}
}

func TestHandlers_DeleteByQuery(t *testing.T) {
	server, drain := newTestServer(t)

	doJSON(t, server, "POST", "/indices", map[string]any{"name": "a"})
	for i := 1; i <= 3; i++ {
		title := "stale thing"
		if i == 3 {
			title = "fresh thing"
		}
		doJSON(t, server, "POST", "/indices/a/documents", map[string]any{
			"id": fmt.Sprint(i), "document": map[string]any{"title": title},
		})
	}
	drain()

	rec := doJSON(t, server, "POST", "/indices/a/documents/_delete_by_query", map[string]any{
		"query": map[string]any{"match": map[string]any{"field": "title", "value": "stale"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete by query: %d %s", rec.Code, rec.Body.String())
	}
	if deleted := decodeBody(t, rec)["deleted"].(float64); deleted != 2 {
		t.Errorf("deleted = %v, want 2", deleted)
	}
}
