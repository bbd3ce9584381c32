package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven/mocks"
	"github.com/scarab-search/scarab-core/internal/engine/dictionary"
)

func newTestWorker() (*Worker, *mocks.MockChunkStore, *mocks.MockPayloadStore, *mocks.MockPendingJobStore, *mocks.MockPersistenceQueue, *dictionary.TermDictionary) {
	chunks := mocks.NewMockChunkStore()
	payloads := mocks.NewMockPayloadStore()
	pending := mocks.NewMockPendingJobStore()
	queue := mocks.NewMockPersistenceQueue()
	dict := dictionary.New(dictionary.DefaultConfig())

	w := NewWorker(Config{
		Queue:      queue,
		Payloads:   payloads,
		Pending:    pending,
		Chunks:     chunks,
		Lock:       mocks.NewMockDistributedLock(),
		Dictionary: dict,
	})
	return w, chunks, payloads, pending, queue, dict
}

func TestWorker_ProcessJob_InlinePayload(t *testing.T) {
	w, chunks, _, _, _, _ := newTestWorker()
	ctx := context.Background()

	term := "idx:title:hello"
	job := domain.PersistenceJob{
		IndexName:     "idx",
		BatchID:       "b1",
		DirtyTerms:    []string{term},
		PersistenceID: "p1",
		TermPostings: map[string][]domain.PostingEntry{
			term: {{DocID: "1", Frequency: 2, Positions: []int{0, 4}}},
		},
	}

	if err := w.ProcessJob(ctx, job); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	stored, err := chunks.ReadAllChunks(ctx, "idx", term)
	if err != nil {
		t.Fatalf("ReadAllChunks: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("chunk count = %d, want 1", len(stored))
	}
	if stored[0].DocumentCount != 1 || len(stored[0].Postings) != 1 {
		t.Errorf("chunk = %+v, want exactly one posting with matching document count", stored[0])
	}
}

func TestWorker_ProcessJob_MergesWithExistingChunks(t *testing.T) {
	w, chunks, _, _, _, _ := newTestWorker()
	ctx := context.Background()
	term := "idx:title:hello"

	seed := domain.ChunkFromPostings("idx", term, []domain.PostingEntry{
		{DocID: "1", Frequency: 1, Positions: []int{0}},
	}, time.Now())
	if err := chunks.WriteChunks(ctx, "idx", term, seed); err != nil {
		t.Fatalf("seed chunks: %v", err)
	}

	job := domain.PersistenceJob{
		IndexName:     "idx",
		BatchID:       "b2",
		DirtyTerms:    []string{term},
		PersistenceID: "p2",
		TermPostings: map[string][]domain.PostingEntry{
			term: {{DocID: "2", Frequency: 3, Positions: []int{1}}},
		},
	}
	if err := w.ProcessJob(ctx, job); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	stored, _ := chunks.ReadAllChunks(ctx, "idx", term)
	total := 0
	for _, c := range stored {
		total += len(c.Postings)
	}
	if total != 2 {
		t.Errorf("merged posting count = %d, want 2 (existing + new)", total)
	}
}

func TestWorker_ProcessJob_TombstoneRemovesDoc(t *testing.T) {
	w, chunks, _, _, _, _ := newTestWorker()
	ctx := context.Background()
	term := "idx:title:hello"

	seed := domain.ChunkFromPostings("idx", term, []domain.PostingEntry{
		{DocID: "1", Frequency: 1, Positions: []int{0}},
		{DocID: "2", Frequency: 1, Positions: []int{0}},
	}, time.Now())
	if err := chunks.WriteChunks(ctx, "idx", term, seed); err != nil {
		t.Fatalf("seed chunks: %v", err)
	}

	job := domain.PersistenceJob{
		IndexName:     "idx",
		BatchID:       "b3",
		DirtyTerms:    []string{term},
		PersistenceID: "p3",
		TermPostings: map[string][]domain.PostingEntry{
			term: {{DocID: "1", Frequency: 0}},
		},
	}
	if err := w.ProcessJob(ctx, job); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	stored, _ := chunks.ReadAllChunks(ctx, "idx", term)
	for _, c := range stored {
		for _, p := range c.Postings {
			if p.DocID == "1" {
				t.Error("tombstoned doc 1 still present in chunks")
			}
		}
	}
}

func TestWorker_ProcessJob_OutOfBandPayloadFallback(t *testing.T) {
	w, chunks, payloads, pending, _, _ := newTestWorker()
	ctx := context.Background()
	term := "idx:title:hello"

	// The job arrives without inline postings (queue-side eviction); the
	// worker must recover the payload from the out-of-band store.
	payload := map[string][]domain.PostingEntry{
		term: {{DocID: "1", Frequency: 1, Positions: []int{0}}},
	}
	if err := payloads.Put(ctx, "p4", payload, time.Hour); err != nil {
		t.Fatalf("seed payload: %v", err)
	}
	if err := pending.Add(ctx, domain.PendingJobRef{PayloadKey: "p4", IndexName: "idx", BatchID: "b4", CreatedAt: time.Now()}, time.Hour); err != nil {
		t.Fatalf("seed pending ref: %v", err)
	}

	job := domain.PersistenceJob{
		IndexName:     "idx",
		BatchID:       "b4",
		DirtyTerms:    []string{term},
		PersistenceID: "p4",
	}
	if err := w.ProcessJob(ctx, job); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	stored, _ := chunks.ReadAllChunks(ctx, "idx", term)
	if len(stored) != 1 {
		t.Fatalf("chunk count = %d, want 1", len(stored))
	}

	// Success acknowledges the payload and pending ref.
	if payloads.Len() != 0 {
		t.Error("payload should be deleted after commit")
	}
	if pending.Len() != 0 {
		t.Error("pending ref should be removed after commit")
	}
}

func TestWorker_ProcessJob_MissingPayloadIsDropped(t *testing.T) {
	w, _, _, _, _, _ := newTestWorker()

	job := domain.PersistenceJob{
		IndexName:     "idx",
		BatchID:       "b5",
		DirtyTerms:    []string{"idx:title:ghost"},
		PersistenceID: "gone",
	}
	if err := w.ProcessJob(context.Background(), job); err != nil {
		t.Fatalf("a job whose payload expired must not error, got %v", err)
	}
}

func TestWorker_ProcessJob_MarksTermsClean(t *testing.T) {
	w, _, _, _, _, dict := newTestWorker()
	ctx := context.Background()

	dict.UpsertEntry("idx", "title", "hello", domain.PostingEntry{DocID: "1", Frequency: 1})
	if len(dict.DirtyTermsSince(0)) != 1 {
		t.Fatal("expected one dirty term before commit")
	}

	term := "idx:title:hello"
	job := domain.PersistenceJob{
		IndexName:     "idx",
		BatchID:       "b6",
		DirtyTerms:    []string{term},
		PersistenceID: "p6",
		TermPostings: map[string][]domain.PostingEntry{
			term: {{DocID: "1", Frequency: 1, Positions: []int{0}}},
		},
	}
	if err := w.ProcessJob(ctx, job); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	if len(dict.DirtyTermsSince(0)) != 0 {
		t.Error("dirty set should be empty after the job commits")
	}
}

func TestWorker_ReapOnce_ReenqueuesOrphanedBatch(t *testing.T) {
	w, _, payloads, pending, queue, _ := newTestWorker()
	w.reapMinAge = 0
	ctx := context.Background()

	payload := map[string][]domain.PostingEntry{
		"idx:title:lost": {{DocID: "1", Frequency: 1}},
	}
	if err := payloads.Put(ctx, "orphan", payload, time.Hour); err != nil {
		t.Fatalf("seed payload: %v", err)
	}
	ref := domain.PendingJobRef{
		PayloadKey: "orphan",
		IndexName:  "idx",
		BatchID:    "b7",
		CreatedAt:  time.Now().Add(-time.Hour),
	}
	if err := pending.Add(ctx, ref, time.Hour); err != nil {
		t.Fatalf("seed pending ref: %v", err)
	}

	w.reapOnce(ctx)

	if queue.Len() != 1 {
		t.Fatalf("queue length = %d, want 1 re-enqueued job", queue.Len())
	}
	if pending.Len() != 1 {
		t.Error("ref should be re-recorded until the re-enqueued job commits")
	}
}
