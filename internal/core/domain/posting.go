package domain

import "time"

// MaxPostingsPerChunk bounds how many posting entries a single persisted
// chunk may hold. It keeps individual chunk rows under a predictable size so
// a reader never has to materialize an unbounded blob for one term.
const MaxPostingsPerChunk = 5000

// PostingEntry records one document's occurrence of a term key: how many
// times it occurred in the field, and at which token offsets.
type PostingEntry struct {
	DocID     string         `json:"doc_id"`
	Frequency int            `json:"frequency"`
	Positions []int          `json:"positions"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Chunk is the persistent, bounded slice of a posting list for one term.
// The logical posting list for a term is the ordered concatenation of its
// chunks by ChunkIndex; uniqueness is on (Index, Term, ChunkIndex).
type Chunk struct {
	Index         string         `json:"index"`
	Term          string         `json:"term"`
	ChunkIndex    int            `json:"chunk_index"`
	Postings      []PostingEntry `json:"postings"`
	DocumentCount int            `json:"document_count"`
	LastUpdated   time.Time      `json:"last_updated"`
}

// ChunkFromPostings partitions a docId-sorted slice of postings into
// ordered chunks of at most MaxPostingsPerChunk entries, per the chunking
// rule. Callers must pass postings already sorted by DocID so chunk
// boundaries are deterministic and readers can merge without a global sort.
func ChunkFromPostings(index, term string, postings []PostingEntry, now time.Time) []Chunk {
	if len(postings) == 0 {
		return nil
	}

	chunkCount := (len(postings) + MaxPostingsPerChunk - 1) / MaxPostingsPerChunk
	chunks := make([]Chunk, 0, chunkCount)

	for i := 0; i < len(postings); i += MaxPostingsPerChunk {
		end := i + MaxPostingsPerChunk
		if end > len(postings) {
			end = len(postings)
		}
		slice := make([]PostingEntry, end-i)
		copy(slice, postings[i:end])

		chunks = append(chunks, Chunk{
			Index:         index,
			Term:          term,
			ChunkIndex:    len(chunks),
			Postings:      slice,
			DocumentCount: len(slice),
			LastUpdated:   now,
		})
	}

	return chunks
}
