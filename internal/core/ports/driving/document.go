package driving

import "context"

// BulkItemStatus is the per-item outcome of a bulk-index request.
type BulkItemStatus struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BulkDocument pairs a caller-supplied id with its document body.
type BulkDocument struct {
	ID       string         `json:"id"`
	Document map[string]any `json:"document"`
}

// DocumentService handles per-document and bulk indexing operations
// against one index.
type DocumentService interface {
	IndexDocument(ctx context.Context, index, id string, document map[string]any) error
	UpdateDocument(ctx context.Context, index, id string, document map[string]any) error
	DeleteDocument(ctx context.Context, index, id string) error

	// BulkIndex indexes multiple documents; one failing document must not
	// prevent the others from committing.
	BulkIndex(ctx context.Context, index string, documents []BulkDocument) ([]BulkItemStatus, error)

	// DeleteByQuery deletes every document matching a query.
	DeleteByQuery(ctx context.Context, index string, query map[string]any) (int, error)
}
