// Package indexing implements the Indexing Pipeline: document →
// tokens → posting deltas in the term dictionary → persistence jobs on the
// queue, with the out-of-band payload mirroring the persistence worker
// relies on for recovery.
package indexing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
	"github.com/scarab-search/scarab-core/internal/engine/analysis"
	"github.com/scarab-search/scarab-core/internal/engine/dictionary"
	"github.com/scarab-search/scarab-core/internal/engine/stats"
)

// DefaultPayloadTTL bounds how long an out-of-band payload survives without
// its job committing.
const DefaultPayloadTTL = 7 * 24 * time.Hour

// DefaultInlinePostingLimit is the largest total posting count a job will
// carry inline; bigger batches ship only the persistence id and the worker
// loads the payload out-of-band. Keeps queue messages under a predictable
// size.
const DefaultInlinePostingLimit = 1000

// Config wires a Pipeline's collaborators.
type Config struct {
	Dictionary *dictionary.TermDictionary
	Stats      *stats.Registry
	Queue      driven.PersistenceQueue
	Payloads   driven.PayloadStore
	Pending    driven.PendingJobStore
	Logger     *slog.Logger

	PayloadTTL         time.Duration
	InlinePostingLimit int
}

// Pipeline turns documents into posting deltas and persistence jobs. It is
// safe for concurrent use; per-batch state lives in Batch values.
type Pipeline struct {
	dict     *dictionary.TermDictionary
	stats    *stats.Registry
	queue    driven.PersistenceQueue
	payloads driven.PayloadStore
	pending  driven.PendingJobStore
	logger   *slog.Logger

	payloadTTL  time.Duration
	inlineLimit int
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.PayloadTTL
	if ttl <= 0 {
		ttl = DefaultPayloadTTL
	}
	inline := cfg.InlinePostingLimit
	if inline <= 0 {
		inline = DefaultInlinePostingLimit
	}

	return &Pipeline{
		dict:        cfg.Dictionary,
		stats:       cfg.Stats,
		queue:       cfg.Queue,
		payloads:    cfg.Payloads,
		pending:     cfg.Pending,
		logger:      logger,
		payloadTTL:  ttl,
		inlineLimit: inline,
	}
}

// Batch accumulates the dirty term keys and tombstones produced by one or
// more document writes; Commit turns it into a persistence job.
type Batch struct {
	Index    string
	BatchID  string
	BulkOpID string

	dirty   map[domain.TermKey]struct{}
	deleted map[domain.TermKey]map[string]struct{}
}

// NewBatch opens a batch for one index. bulkOpID groups the batches of one
// bulk operation; pass "" for single-document writes.
func (p *Pipeline) NewBatch(index, bulkOpID string) *Batch {
	return &Batch{
		Index:    index,
		BatchID:  newID(),
		BulkOpID: bulkOpID,
		dirty:    make(map[domain.TermKey]struct{}),
		deleted:  make(map[domain.TermKey]map[string]struct{}),
	}
}

// IndexDocument validates one document against the index's mappings,
// analyzes every indexable field, and upserts the resulting postings into
// the dictionary, recording the touched term keys in b. prior is the
// document's previously indexed source (nil for a fresh document); its
// postings are reversed first so re-indexing is idempotent.
func (p *Pipeline) IndexDocument(b *Batch, meta *domain.IndexMetadata, docID string, document, prior map[string]any) error {
	fieldTokens, err := analyzeDocument(meta, document)
	if err != nil {
		return err
	}

	if prior != nil {
		p.removeDocument(b, meta, docID, prior)
	}

	st := p.stats.Get(meta.Name)
	for field, tokens := range fieldTokens {
		st.RecordFieldLength(meta.Name, docID, field, len(tokens))

		for text, occ := range groupOccurrences(tokens) {
			key := domain.NewTermKey(meta.Name, field, text)

			list := p.dict.GetPostingList(meta.Name, field, text)
			alreadyPresent := false
			if list != nil {
				_, alreadyPresent = list.GetEntry(docID)
			}
			if !alreadyPresent {
				st.IncrementDF(key, 1)
			}

			p.dict.UpsertEntry(meta.Name, field, text, domain.PostingEntry{
				DocID:     docID,
				Frequency: len(occ),
				Positions: occ,
			})
			b.dirty[key] = struct{}{}
			// An earlier delete in the same batch is superseded.
			delete(b.deleted[key], docID)
		}
	}

	// removeDocument already took the prior version out of the total.
	st.AddTotal(1)
	return nil
}

// DeleteDocument reverses a document's postings: each token of its fields
// has the docID removed from the dictionary, stats decrement, and a
// tombstone is recorded so the persistence worker drops the entry from the
// committed chunks as well.
func (p *Pipeline) DeleteDocument(b *Batch, meta *domain.IndexMetadata, docID string, document map[string]any) error {
	if document == nil {
		return fmt.Errorf("delete document %s: no source to reverse: %w", docID, domain.ErrNotFound)
	}

	p.removeDocument(b, meta, docID, document)
	return nil
}

func (p *Pipeline) removeDocument(b *Batch, meta *domain.IndexMetadata, docID string, document map[string]any) {
	fieldTokens, err := analyzeDocument(meta, document)
	if err != nil {
		// The document was indexed once, so its stored source analyzes
		// cleanly under the mappings it was written with; a mismatch here
		// means the mappings changed since. Reverse what still analyzes.
		p.logger.Warn("stored document no longer analyzes cleanly", "doc_id", docID, "error", err)
	}

	st := p.stats.Get(meta.Name)
	for field, tokens := range fieldTokens {
		st.RemoveFieldLength(meta.Name, docID, field)

		for text := range groupOccurrences(tokens) {
			key := domain.NewTermKey(meta.Name, field, text)

			list := p.dict.GetPostingList(meta.Name, field, text)
			if list != nil {
				if _, present := list.GetEntry(docID); present {
					p.dict.RemoveEntry(meta.Name, field, text, docID)
				}
			}
			st.IncrementDF(key, -1)

			b.dirty[key] = struct{}{}
			if b.deleted[key] == nil {
				b.deleted[key] = make(map[string]struct{})
			}
			b.deleted[key][docID] = struct{}{}
		}
	}

	st.AddTotal(-1)
}

// Commit closes a batch: it snapshots the dirty terms' postings from the
// dictionary, mirrors the payload into the out-of-band store, records a
// pending-job reference, and enqueues the persistence job. Deleted
// documents ride along as zero-frequency tombstones the worker interprets
// as removals. Returns the enqueued job, or nil if the batch touched
// nothing.
func (p *Pipeline) Commit(ctx context.Context, b *Batch) (*domain.PersistenceJob, error) {
	if len(b.dirty) == 0 {
		return nil, nil
	}

	termPostings := make(map[string][]domain.PostingEntry, len(b.dirty))
	totalEntries := 0
	for key := range b.dirty {
		var entries []domain.PostingEntry
		if list := p.dict.GetPostingList(key.Index, key.Field, key.Token); list != nil {
			entries = list.Entries()
		}
		for docID := range b.deleted[key] {
			entries = append(entries, domain.PostingEntry{DocID: docID, Frequency: 0})
		}
		termPostings[key.String()] = entries
		totalEntries += len(entries)
	}

	persistenceID := b.BatchID
	now := time.Now()

	if err := p.payloads.Put(ctx, persistenceID, termPostings, p.payloadTTL); err != nil {
		return nil, fmt.Errorf("store payload for batch %s: %w", b.BatchID, err)
	}
	if err := p.pending.Add(ctx, domain.PendingJobRef{
		PayloadKey: persistenceID,
		IndexName:  b.Index,
		BatchID:    b.BatchID,
		BulkOpID:   b.BulkOpID,
		CreatedAt:  now,
	}, p.payloadTTL); err != nil {
		return nil, fmt.Errorf("record pending job for batch %s: %w", b.BatchID, err)
	}

	job := domain.PersistenceJob{
		IndexName:     b.Index,
		BatchID:       b.BatchID,
		BulkOpID:      b.BulkOpID,
		DirtyTerms:    sortedTermKeys(b.dirty),
		PersistenceID: persistenceID,
		IndexedAt:     now,
	}
	if totalEntries <= p.inlineLimit {
		job.TermPostings = termPostings
	}

	if err := p.queue.Enqueue(ctx, job); err != nil {
		// The payload and pending ref are already durable; the reaper will
		// re-enqueue this batch even though the caller sees the failure.
		return nil, fmt.Errorf("enqueue persistence job for batch %s: %w", b.BatchID, err)
	}

	p.logger.Debug("persistence job enqueued",
		"index", b.Index,
		"batch_id", b.BatchID,
		"dirty_terms", len(job.DirtyTerms),
		"inline", job.HasInlinePayload(),
	)
	return &job, nil
}

// analyzeDocument runs every indexable field of document through its
// configured analyzer, returning tokens per field (including keyword
// sub-fields under their dotted path). Mapped fields are type-checked;
// unmapped fields are indexed dynamically: strings through the standard
// analyzer, scalars as a single keyword token.
func analyzeDocument(meta *domain.IndexMetadata, document map[string]any) (map[string][]domain.Token, error) {
	out := make(map[string][]domain.Token)

	for field, value := range document {
		if value == nil {
			continue
		}

		fm, mapped := meta.Mappings.FieldMapping(field)
		if !mapped {
			if s, ok := value.(string); ok {
				out[field] = standardAnalyze(s)
			} else {
				out[field] = keywordToken(value)
			}
			continue
		}

		tokens, err := analyzeField(field, fm, value)
		if err != nil {
			return nil, err
		}
		out[field] = tokens

		for subName, subFM := range fm.Fields {
			subTokens, err := analyzeField(field+"."+subName, subFM, value)
			if err != nil {
				return nil, err
			}
			out[field+"."+subName] = subTokens
		}
	}

	return out, nil
}

func analyzeField(field string, fm domain.FieldMapping, value any) ([]domain.Token, error) {
	switch fm.Type {
	case "text":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("field %q: expected string for text field, got %T: %w", field, value, domain.ErrInvalidInput)
		}
		analyzer := analysis.Get(fm.EffectiveAnalyzer(), domain.DefaultAnalyzerOptions())
		return analyzer.Analyze(s), nil

	case "keyword":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("field %q: expected string for keyword field, got %T: %w", field, value, domain.ErrInvalidInput)
		}
		return keywordToken(s), nil

	case "integer", "long", "float", "double", "number":
		switch value.(type) {
		case float64, int, int64, float32:
			return keywordToken(value), nil
		default:
			return nil, fmt.Errorf("field %q: expected number, got %T: %w", field, value, domain.ErrInvalidInput)
		}

	case "boolean":
		if _, ok := value.(bool); !ok {
			return nil, fmt.Errorf("field %q: expected boolean, got %T: %w", field, value, domain.ErrInvalidInput)
		}
		return keywordToken(value), nil

	default:
		// Unknown declared type: index the string form as one token rather
		// than rejecting the document.
		return keywordToken(value), nil
	}
}

func standardAnalyze(s string) []domain.Token {
	return analysis.StandardAnalyzer{Options: domain.DefaultAnalyzerOptions()}.Analyze(s)
}

// keywordToken renders a value as a single lowercased token at position 0.
func keywordToken(value any) []domain.Token {
	text := strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	if text == "" {
		return nil
	}
	return []domain.Token{{Text: text, Position: 0}}
}

// groupOccurrences folds a token sequence into per-text position lists.
func groupOccurrences(tokens []domain.Token) map[string][]int {
	occ := make(map[string][]int)
	for _, t := range tokens {
		occ[t.Text] = append(occ[t.Text], t.Position)
	}
	return occ
}

func sortedTermKeys(set map[domain.TermKey]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	return keys
}

// newID returns a random 16-byte hex identifier for batches and
// persistence payloads.
func newID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
