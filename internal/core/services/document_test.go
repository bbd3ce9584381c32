package services

import (
	"context"
	"errors"
	"testing"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driving"
)

func TestBulkIndex_IsolatesBadDocuments(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")

	statuses, err := e.docs.BulkIndex(context.Background(), "a", []driving.BulkDocument{
		{ID: "1", Document: map[string]any{"title": "Good One"}},
		{ID: "2", Document: map[string]any{"title": 42}}, // type mismatch
		{ID: "3", Document: map[string]any{"title": "Good Two"}},
	})
	if err != nil {
		t.Fatalf("bulk index: %v", err)
	}
	e.drain(t)

	if !statuses[0].Success || !statuses[2].Success {
		t.Errorf("good documents must commit: %+v", statuses)
	}
	if statuses[1].Success {
		t.Error("bad document must be reported as failed")
	}

	result, err := e.search.Search(context.Background(), "a", domain.SearchRequest{
		Query: domain.Term("title", "good"),
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("total = %d, want 2 committed documents", result.Total)
	}
}

func TestBulkIndex_EmptyIDReported(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")

	statuses, err := e.docs.BulkIndex(context.Background(), "a", []driving.BulkDocument{
		{ID: "", Document: map[string]any{"title": "No ID"}},
	})
	if err != nil {
		t.Fatalf("bulk index: %v", err)
	}
	if statuses[0].Success {
		t.Error("document without id must fail")
	}
}

func TestUpdateDocument_RequiresExisting(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")

	err := e.docs.UpdateDocument(context.Background(), "a", "ghost", map[string]any{"title": "New"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteDocument_MissingIsNotFound(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")

	err := e.docs.DeleteDocument(context.Background(), "a", "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteByQuery_RemovesMatches(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "stale entry"})
	e.indexDoc(t, "a", "2", map[string]any{"title": "stale record"})
	e.indexDoc(t, "a", "3", map[string]any{"title": "fresh record"})
	e.drain(t)

	deleted, err := e.docs.DeleteByQuery(context.Background(), "a", map[string]any{
		"match": map[string]any{"field": "title", "value": "stale"},
	})
	if err != nil {
		t.Fatalf("delete by query: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	e.drain(t)

	result, err := e.search.Search(context.Background(), "a", domain.SearchRequest{
		Query: domain.Term("title", "record"),
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 1 || result.Hits[0].ID != "3" {
		t.Errorf("hits = %+v, want only doc 3", result.Hits)
	}
}

func TestIndexDocument_MissingIndexRejected(t *testing.T) {
	e := newTestEnv(t)

	err := e.docs.IndexDocument(context.Background(), "nope", "1", map[string]any{"title": "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for missing index", err)
	}
}

func TestCreateIndex_DuplicateConflicts(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")

	_, err := e.admin.CreateIndex(context.Background(), "a", domain.IndexSettings{}, domain.Mappings{})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestRebuildIndex_RederivesFromDocuments(t *testing.T) {
	e := newTestEnv(t)
	e.createIndex(t, "a")
	e.indexDoc(t, "a", "1", map[string]any{"title": "alpha one"})
	e.indexDoc(t, "a", "2", map[string]any{"title": "alpha two"})
	e.drain(t)

	status, err := e.admin.RebuildIndex(context.Background(), "a", driving.RebuildOptions{
		BatchSize:                     1,
		Concurrency:                   2,
		EnableTermPostingsPersistence: true,
	})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if status.TotalDocuments != 2 || status.TotalBatches != 2 {
		t.Errorf("status = %+v, want 2 documents in 2 batches", status)
	}
	if status.Status != "completed" {
		t.Errorf("status = %q, want completed", status.Status)
	}
	e.drain(t)

	result, err := e.search.Search(context.Background(), "a", domain.SearchRequest{
		Query: domain.Term("title", "alpha"),
	})
	if err != nil {
		t.Fatalf("search after rebuild: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("total = %d, want 2 after rebuild", result.Total)
	}
}
