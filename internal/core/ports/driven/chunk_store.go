package driven

import (
	"context"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

// ChunkStore is the durable Chunked Posting Store: posting lists
// partitioned by (indexName, term, chunkIndex). Writes are atomic per term,
// never across terms.
type ChunkStore interface {
	// ReadAllChunks returns the ordered sequence of chunks for one term;
	// the caller merges them into the logical posting list.
	ReadAllChunks(ctx context.Context, index, term string) ([]domain.Chunk, error)

	// FindTermsByIndex enumerates distinct terms stored for one index.
	FindTermsByIndex(ctx context.Context, index string) ([]string, error)

	// FindTermsByIndexAndValuePrefix returns terms whose token starts with
	// prefix, via an index on term — never a full scan.
	FindTermsByIndexAndValuePrefix(ctx context.Context, index, prefix string) ([]string, error)

	// WriteChunks upserts the complete set of chunks for one term; any
	// previously stored chunk of that term not present in chunks is
	// deleted in the same logical operation.
	WriteChunks(ctx context.Context, index, term string, chunks []domain.Chunk) error

	// DeleteByIndex removes every chunk of every term for an index.
	DeleteByIndex(ctx context.Context, index string) error

	// DeleteByTerm removes every chunk of one term.
	DeleteByTerm(ctx context.Context, index, term string) error

	// CountTerms returns the number of distinct terms stored for an index.
	CountTerms(ctx context.Context, index string) (int, error)

	// Ping checks if the store backend is healthy.
	Ping(ctx context.Context) error
}
