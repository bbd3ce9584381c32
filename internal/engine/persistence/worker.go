// Package persistence implements the Persistence Worker: it drains
// persistence jobs from the queue, merges their posting deltas into the
// chunked store atomically per term, and recovers batches whose queue-side
// data was lost via the out-of-band payload store and pending-job tracker.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
	"github.com/scarab-search/scarab-core/internal/engine/dictionary"
	"github.com/scarab-search/scarab-core/internal/engine/postings"
)

// Config holds configuration for the worker.
type Config struct {
	Queue    driven.PersistenceQueue
	Payloads driven.PayloadStore
	Pending  driven.PendingJobStore
	Chunks   driven.ChunkStore
	Lock     driven.DistributedLock

	// Dictionary is notified via MarkClean once a job's terms commit, so
	// eviction can reclaim them.
	Dictionary *dictionary.TermDictionary

	Logger *slog.Logger

	Concurrency    int           // number of concurrent job processors
	DequeueTimeout time.Duration // how long one dequeue blocks before re-checking stop
	LockTTL        time.Duration // TTL for the per-term write lock
	ReapInterval   time.Duration // how often the reaper checks for orphaned pending jobs
	ReapMinAge     time.Duration // pending refs younger than this are left for normal delivery
}

// Worker drains persistence jobs with at-least-once semantics: a job may be
// redelivered after a crash, and merging is idempotent (upsert per docId,
// last write wins), so redelivery converges to the same chunk set.
type Worker struct {
	queue    driven.PersistenceQueue
	payloads driven.PayloadStore
	pending  driven.PendingJobStore
	chunks   driven.ChunkStore
	lock     driven.DistributedLock
	dict     *dictionary.TermDictionary
	logger   *slog.Logger

	concurrency    int
	dequeueTimeout time.Duration
	lockTTL        time.Duration
	reapInterval   time.Duration
	reapMinAge     time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWorker creates a persistence worker.
func NewWorker(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	reapInterval := cfg.ReapInterval
	if reapInterval <= 0 {
		reapInterval = time.Minute
	}
	reapMinAge := cfg.ReapMinAge
	if reapMinAge <= 0 {
		reapMinAge = 2 * time.Minute
	}

	return &Worker{
		queue:          cfg.Queue,
		payloads:       cfg.Payloads,
		pending:        cfg.Pending,
		chunks:         cfg.Chunks,
		lock:           cfg.Lock,
		dict:           cfg.Dictionary,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		lockTTL:        lockTTL,
		reapInterval:   reapInterval,
		reapMinAge:     reapMinAge,
	}
}

// Start begins the worker loop. It runs until Stop is called or ctx is
// cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("persistence worker starting", "concurrency", w.concurrency)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reapLoop(ctx)
	}()

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker and waits for in-flight jobs.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("persistence worker stopped")
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue persistence job", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.processJob(ctx, *job, logger)
	}
}

func (w *Worker) processJob(ctx context.Context, job domain.PersistenceJob, logger *slog.Logger) {
	logger = logger.With("index", job.IndexName, "batch_id", job.BatchID)
	start := time.Now()

	err := w.ProcessJob(ctx, job)
	if err != nil {
		logger.Error("persistence job failed", "duration", time.Since(start), "error", err)
		if nackErr := w.queue.Nack(ctx, job, err.Error()); nackErr != nil {
			logger.Error("failed to nack persistence job", "nack_error", nackErr)
		}
		return
	}

	logger.Info("persistence job committed", "terms", len(job.DirtyTerms), "duration", time.Since(start))

	if ackErr := w.queue.Ack(ctx, job); ackErr != nil {
		logger.Error("failed to ack persistence job", "ack_error", ackErr)
	}
}

// ProcessJob commits one persistence job: it loads the payload (inline or
// out-of-band), merges each dirty term's postings into the chunked store
// under a per-term lock, and on full success acknowledges the payload and
// pending-job reference. Exported so the composition root can drain jobs
// synchronously in tests and single-process deployments.
func (w *Worker) ProcessJob(ctx context.Context, job domain.PersistenceJob) error {
	termPostings, err := w.loadPayload(ctx, job)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The payload expired or was acknowledged by a previous
			// delivery of this job; nothing remains to commit.
			w.logger.Warn("persistence payload missing, dropping job",
				"batch_id", job.BatchID, "persistence_id", job.PersistenceID)
			_ = w.pending.Remove(ctx, job.PersistenceID)
			return nil
		}
		return err
	}

	for _, term := range job.DirtyTerms {
		entries, ok := termPostings[term]
		if !ok {
			continue
		}
		if err := w.commitTerm(ctx, job.IndexName, term, entries); err != nil {
			return fmt.Errorf("commit term %s: %w", term, err)
		}
	}

	w.markClean(job.DirtyTerms)

	if err := w.payloads.Delete(ctx, job.PersistenceID); err != nil {
		w.logger.Warn("failed to delete persistence payload", "persistence_id", job.PersistenceID, "error", err)
	}
	if err := w.pending.Remove(ctx, job.PersistenceID); err != nil {
		w.logger.Warn("failed to remove pending job ref", "persistence_id", job.PersistenceID, "error", err)
	}
	return nil
}

func (w *Worker) loadPayload(ctx context.Context, job domain.PersistenceJob) (map[string][]domain.PostingEntry, error) {
	if job.HasInlinePayload() {
		return job.TermPostings, nil
	}
	payload, err := w.payloads.Get(ctx, job.PersistenceID)
	if err != nil {
		return nil, fmt.Errorf("load payload %s: %w", job.PersistenceID, err)
	}
	return payload, nil
}

// commitTerm merges one term's delta into its committed chunk set: read all
// chunks, upsert per docId (zero-frequency entries are tombstones and
// remove the docId), re-chunk, write back. The per-term lock plus the
// store's transactional WriteChunks give the atomic-per-term guarantee
// across worker instances.
func (w *Worker) commitTerm(ctx context.Context, index, term string, entries []domain.PostingEntry) error {
	lockName := "term:" + index + ":" + term
	acquired, err := w.acquireLock(ctx, lockName)
	if err != nil {
		return fmt.Errorf("acquire term lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("term %s is locked by another worker: %w", term, domain.ErrUnavailable)
	}
	defer func() {
		if releaseErr := w.lock.Release(ctx, lockName); releaseErr != nil {
			w.logger.Warn("failed to release term lock", "term", term, "error", releaseErr)
		}
	}()

	existing, err := w.chunks.ReadAllChunks(ctx, index, term)
	if err != nil {
		return fmt.Errorf("read existing chunks: %w", err)
	}
	for _, c := range existing {
		if c.DocumentCount != len(c.Postings) {
			return fmt.Errorf("chunk %d of %s records %d documents but holds %d postings: %w",
				c.ChunkIndex, term, c.DocumentCount, len(c.Postings), domain.ErrInternalInvariant)
		}
	}

	merged := postings.FromChunks(existing)
	for _, e := range entries {
		if e.Frequency <= 0 {
			merged.RemoveEntry(e.DocID)
			continue
		}
		merged.UpsertEntry(e)
	}

	if merged.Size() == 0 {
		if err := w.chunks.DeleteByTerm(ctx, index, term); err != nil {
			return fmt.Errorf("delete emptied term: %w", err)
		}
		return nil
	}

	chunks := merged.ToChunks(index, term, time.Now())
	if err := w.chunks.WriteChunks(ctx, index, term, chunks); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}
	return nil
}

// acquireLock retries briefly before giving up, so two workers racing on
// the same term serialize instead of immediately failing the job.
func (w *Worker) acquireLock(ctx context.Context, name string) (bool, error) {
	const attempts = 5
	for i := 0; i < attempts; i++ {
		acquired, err := w.lock.Acquire(ctx, name, w.lockTTL)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(time.Duration(i+1) * 100 * time.Millisecond):
		}
	}
	return false, nil
}

func (w *Worker) markClean(dirtyTerms []string) {
	if w.dict == nil {
		return
	}
	keys := make([]domain.TermKey, 0, len(dirtyTerms))
	for _, term := range dirtyTerms {
		key, err := domain.ParseTermKey(term)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	w.dict.MarkClean(keys)
}

// reapLoop periodically recovers batches whose queue job was lost (broker
// eviction): it pops the oldest pending ref, and if its payload still
// exists, re-enqueues an out-of-band job for it. Refs younger than
// ReapMinAge are put back untouched — their job is still in normal
// delivery.
func (w *Worker) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(w.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.reapOnce(ctx)
		}
	}
}

func (w *Worker) reapOnce(ctx context.Context) {
	seen := make(map[string]struct{})
	for {
		ref, err := w.pending.PopOldest(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				w.logger.Error("failed to pop pending job ref", "error", err)
			}
			return
		}

		// A ref re-recorded earlier in this pass has come back around;
		// everything left has already been handled.
		if _, done := seen[ref.PayloadKey]; done {
			_ = w.pending.Add(ctx, ref, DefaultPendingTTL)
			return
		}
		seen[ref.PayloadKey] = struct{}{}

		if time.Since(ref.CreatedAt) < w.reapMinAge {
			// Still within normal delivery; put it back and stop — every
			// ref behind it is younger.
			if err := w.pending.Add(ctx, ref, DefaultPendingTTL); err != nil {
				w.logger.Error("failed to restore pending job ref", "payload_key", ref.PayloadKey, "error", err)
			}
			return
		}

		payload, err := w.payloads.Get(ctx, ref.PayloadKey)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				w.logger.Warn("pending job payload expired, dropping", "payload_key", ref.PayloadKey)
				continue
			}
			w.logger.Error("failed to load pending job payload", "payload_key", ref.PayloadKey, "error", err)
			// Put the ref back so a later pass retries.
			_ = w.pending.Add(ctx, ref, DefaultPendingTTL)
			return
		}

		dirtyTerms := make([]string, 0, len(payload))
		for term := range payload {
			dirtyTerms = append(dirtyTerms, term)
		}

		job := domain.PersistenceJob{
			IndexName:     ref.IndexName,
			BatchID:       ref.BatchID,
			BulkOpID:      ref.BulkOpID,
			DirtyTerms:    dirtyTerms,
			PersistenceID: ref.PayloadKey,
			IndexedAt:     ref.CreatedAt,
		}

		// Re-record the ref before re-enqueueing so a second loss is still
		// recoverable; the ref is removed when the job finally commits.
		if err := w.pending.Add(ctx, ref, DefaultPendingTTL); err != nil {
			w.logger.Error("failed to re-record pending job ref", "payload_key", ref.PayloadKey, "error", err)
		}
		if err := w.queue.Enqueue(ctx, job); err != nil {
			w.logger.Error("failed to re-enqueue reaped job", "batch_id", ref.BatchID, "error", err)
			return
		}
		w.logger.Info("re-enqueued orphaned persistence job", "index", ref.IndexName, "batch_id", ref.BatchID)
	}
}

// DefaultPendingTTL bounds how long a pending-job reference survives
// without its batch committing, matching the payload store's TTL.
const DefaultPendingTTL = 7 * 24 * time.Hour
