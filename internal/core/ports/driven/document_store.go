package driven

import "context"

// DocumentStore is the external collaborator holding document source
// bodies, keyed by (indexName, documentId). The engine does not own it and
// depends only on this contract to resolve hits to source content.
type DocumentStore interface {
	// Get returns the stored source body for a document, or
	// domain.ErrNotFound if absent.
	Get(ctx context.Context, index, docID string) (map[string]any, error)

	// GetMany resolves multiple document ids in one call; missing ids are
	// simply omitted from the result map.
	GetMany(ctx context.Context, index string, docIDs []string) (map[string]map[string]any, error)

	// Put stores or replaces a document's source body.
	Put(ctx context.Context, index, docID string, source map[string]any) error

	// Delete removes a document's source body.
	Delete(ctx context.Context, index, docID string) error

	// DeleteByIndex removes every document body for an index.
	DeleteByIndex(ctx context.Context, index string) error

	// List pages through an index's documents in docID order, for rebuild
	// batching. limit <= 0 means no limit.
	List(ctx context.Context, index string, limit, offset int) ([]StoredDocument, error)

	// Count returns the number of stored documents for an index.
	Count(ctx context.Context, index string) (int, error)
}

// StoredDocument pairs a document id with its stored source body.
type StoredDocument struct {
	ID     string
	Source map[string]any
}
