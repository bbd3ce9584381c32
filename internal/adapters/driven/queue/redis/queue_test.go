package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

func setupTestQueue(t *testing.T) (*Queue, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	q, err := NewQueue(client, "test-consumer")
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}

	return q, func() {
		client.Close()
		mr.Close()
	}
}

func testJob(id string) domain.PersistenceJob {
	return domain.PersistenceJob{
		IndexName:     "idx",
		BatchID:       "batch-" + id,
		DirtyTerms:    []string{"idx:title:hello"},
		PersistenceID: id,
		TermPostings: map[string][]domain.PostingEntry{
			"idx:title:hello": {{DocID: "1", Frequency: 1, Positions: []int{0}}},
		},
		IndexedAt: time.Now(),
	}
}

func TestQueue_EnqueueDequeueRoundTrip(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("p1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job == nil {
		t.Fatal("expected a job")
	}
	if job.PersistenceID != "p1" || job.IndexName != "idx" {
		t.Errorf("job = %+v, want the enqueued job back", job)
	}
	if !job.HasInlinePayload() {
		t.Error("job body should round-trip with its inline postings")
	}
}

func TestQueue_DequeueEmptyReturnsNil(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	job, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job != nil {
		t.Errorf("job = %+v, want nil on empty queue", job)
	}
}

func TestQueue_AckRemovesJob(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("p2")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, err := q.Dequeue(ctx, time.Second)
	if err != nil || job == nil {
		t.Fatalf("dequeue: job=%v err=%v", job, err)
	}

	if err := q.Ack(ctx, *job); err != nil {
		t.Fatalf("ack: %v", err)
	}

	again, err := q.Dequeue(ctx, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("dequeue after ack: %v", err)
	}
	if again != nil {
		t.Errorf("job = %+v, want nothing after ack", again)
	}
}

func TestQueue_NackRedelivers(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("p3")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, err := q.Dequeue(ctx, time.Second)
	if err != nil || job == nil {
		t.Fatalf("dequeue: job=%v err=%v", job, err)
	}

	if err := q.Nack(ctx, *job, "transient store failure"); err != nil {
		t.Fatalf("nack: %v", err)
	}

	redelivered, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("dequeue after nack: %v", err)
	}
	if redelivered == nil {
		t.Fatal("expected the nacked job to be redelivered")
	}
	if redelivered.PersistenceID != "p3" {
		t.Errorf("redelivered = %+v, want persistence id p3", redelivered)
	}
}

func TestQueue_EvictedJobBodyStillResolves(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("p4")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Simulate broker-side eviction of the mirrored job body.
	if err := q.client.Del(ctx, jobKeyPrefix+"p4").Err(); err != nil {
		t.Fatalf("del job body: %v", err)
	}

	job, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job == nil {
		t.Fatal("expected a skeleton job despite evicted body")
	}
	if job.PersistenceID != "p4" {
		t.Errorf("persistence id = %q, want p4 for out-of-band recovery", job.PersistenceID)
	}
	if job.HasInlinePayload() {
		t.Error("skeleton job must not claim an inline payload")
	}
}

func TestQueue_Ping(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	if err := q.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
