package driving

import (
	"context"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

// SearchService runs the query pipeline (parse → plan → execute → score →
// paginate) against one index and resolves hits to source bodies.
type SearchService interface {
	Search(ctx context.Context, index string, req domain.SearchRequest) (*domain.SearchResult, error)
	Suggest(ctx context.Context, index, text, field string, size int) ([]domain.Suggestion, error)
}
