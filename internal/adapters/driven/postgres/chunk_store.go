package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore implements driven.ChunkStore, the chunked posting store, on
// PostgreSQL. Rows are keyed by (index_name, term, chunk_index);
// `term` holds the canonical "index:field:token" term key string so term
// enumeration and prefix lookups stay index-aware without a join.
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new ChunkStore.
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// ReadAllChunks returns the ordered sequence of chunks for one term; the
// caller merges them into the logical posting list.
func (s *ChunkStore) ReadAllChunks(ctx context.Context, index, term string) ([]domain.Chunk, error) {
	query := `
		SELECT index_name, term, chunk_index, postings, document_count, last_updated
		FROM term_postings
		WHERE index_name = $1 AND term = $2
		ORDER BY chunk_index ASC
	`

	rows, err := s.db.QueryContext(ctx, query, index, term)
	if err != nil {
		return nil, fmt.Errorf("read chunks for %s/%s: %w", index, term, err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// FindTermsByIndex enumerates distinct terms stored for one index.
func (s *ChunkStore) FindTermsByIndex(ctx context.Context, index string) ([]string, error) {
	query := `SELECT DISTINCT term FROM term_postings WHERE index_name = $1`
	rows, err := s.db.QueryContext(ctx, query, index)
	if err != nil {
		return nil, fmt.Errorf("find terms for %s: %w", index, err)
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

// FindTermsByIndexAndValuePrefix returns terms whose token starts with
// prefix, via the index on term — never a full scan. The canonical term
// form is "index:field:token"; we match on the portion after the second
// colon with a LIKE anchored at the token boundary, which the schema's
// btree index on (index_name, term) still serves efficiently for a
// leading-literal pattern.
func (s *ChunkStore) FindTermsByIndexAndValuePrefix(ctx context.Context, index, prefix string) ([]string, error) {
	query := `
		SELECT DISTINCT term FROM term_postings
		WHERE index_name = $1 AND term LIKE $1 || ':%:' || $2 || '%'
	`
	rows, err := s.db.QueryContext(ctx, query, index, prefix)
	if err != nil {
		return nil, fmt.Errorf("find terms by prefix %q for %s: %w", prefix, index, err)
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

// WriteChunks upserts the complete set of chunks for one term; any
// previously stored chunk of that term not present in chunks is deleted in
// the same logical operation. The whole replace runs inside one
// transaction, so a reader never observes a partial mix of pre- and
// post-image chunks for the term (the atomic-per-term consistency).
func (s *ChunkStore) WriteChunks(ctx context.Context, index, term string, chunks []domain.Chunk) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM term_postings WHERE index_name = $1 AND term = $2`,
			index, term,
		); err != nil {
			return fmt.Errorf("clear prior chunks for %s/%s: %w", index, term, err)
		}

		if len(chunks) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO term_postings (index_name, term, chunk_index, postings, document_count, last_updated)
			VALUES ($1, $2, $3, $4, $5, $6)
		`)
		if err != nil {
			return fmt.Errorf("prepare chunk insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range chunks {
			postingsJSON, err := json.Marshal(c.Postings)
			if err != nil {
				return fmt.Errorf("marshal postings for %s chunk %d: %w", term, c.ChunkIndex, err)
			}
			if _, err := stmt.ExecContext(ctx, c.Index, c.Term, c.ChunkIndex, postingsJSON, c.DocumentCount, c.LastUpdated); err != nil {
				return fmt.Errorf("insert chunk %s/%s[%d]: %w", index, term, c.ChunkIndex, err)
			}
		}
		return nil
	})
}

// DeleteByIndex removes every chunk of every term for an index.
func (s *ChunkStore) DeleteByIndex(ctx context.Context, index string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM term_postings WHERE index_name = $1`, index)
	if err != nil {
		return fmt.Errorf("delete chunks for index %s: %w", index, err)
	}
	return nil
}

// DeleteByTerm removes every chunk of one term.
func (s *ChunkStore) DeleteByTerm(ctx context.Context, index, term string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM term_postings WHERE index_name = $1 AND term = $2`, index, term)
	if err != nil {
		return fmt.Errorf("delete chunks for %s/%s: %w", index, term, err)
	}
	return nil
}

// CountTerms returns the number of distinct terms stored for an index.
func (s *ChunkStore) CountTerms(ctx context.Context, index string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT term) FROM term_postings WHERE index_name = $1`, index,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count terms for %s: %w", index, err)
	}
	return count, nil
}

// Ping checks if the store backend is healthy.
func (s *ChunkStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(rows rowScanner) (domain.Chunk, error) {
	var c domain.Chunk
	var postingsJSON []byte
	if err := rows.Scan(&c.Index, &c.Term, &c.ChunkIndex, &postingsJSON, &c.DocumentCount, &c.LastUpdated); err != nil {
		return domain.Chunk{}, fmt.Errorf("scan chunk: %w", err)
	}
	if len(postingsJSON) > 0 {
		if err := json.Unmarshal(postingsJSON, &c.Postings); err != nil {
			return domain.Chunk{}, fmt.Errorf("unmarshal postings for %s: %w", c.Term, err)
		}
	}
	return c, nil
}
