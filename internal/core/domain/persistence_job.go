package domain

import "time"

// PersistenceJob is a unit of work describing the dirty term keys produced
// by one indexing batch and (optionally) the postings to commit for them.
// The indexing pipeline constructs one at the end of each batch and enqueues
// it on the persistence queue.
type PersistenceJob struct {
	IndexName string `json:"index_name"`
	BatchID   string `json:"batch_id"`
	BulkOpID  string `json:"bulk_op_id"`

	// DirtyTerms is the set of term keys (canonical string form) touched
	// by this batch.
	DirtyTerms []string `json:"dirty_terms"`

	// TermPostings optionally carries a snapshot of postings per dirty
	// term directly in the job, avoiding an out-of-band payload lookup
	// for small batches. Keyed by the term key's canonical string form.
	TermPostings map[string][]PostingEntry `json:"term_postings,omitempty"`

	// PersistenceID identifies the out-of-band payload in the payload
	// store when TermPostings is omitted (large batches) or as a
	// recovery key regardless.
	PersistenceID string    `json:"persistence_id"`
	IndexedAt     time.Time `json:"indexed_at"`
}

// HasInlinePayload reports whether the job carries its postings directly
// rather than requiring an out-of-band payload-store lookup.
func (j PersistenceJob) HasInlinePayload() bool {
	return len(j.TermPostings) > 0
}

// PendingJobRef is a durable reference to a job whose payload lives in the
// out-of-band payload store, used to recover after the queue itself loses a
// job's data (broker-side eviction).
type PendingJobRef struct {
	PayloadKey string    `json:"payload_key"`
	IndexName  string    `json:"index_name"`
	BatchID    string    `json:"batch_id"`
	BulkOpID   string    `json:"bulk_op_id"`
	CreatedAt  time.Time `json:"created_at"`
}
