package scorer

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/scarab-search/scarab-core/internal/core/domain"
)

// MappingLoader resolves an index's current field mappings, e.g. from the
// IndexStore.
type MappingLoader func(ctx context.Context, index string) (domain.Mappings, error)

// BoostCache resolves field boosts lazily per search request and
// deduplicates concurrent loads for the same index via single-flight, so
// many term scorers racing on one search don't each re-read the mappings.
type BoostCache struct {
	load  MappingLoader
	group singleflight.Group
}

// NewBoostCache wraps a mapping loader with single-flight deduplication.
func NewBoostCache(load MappingLoader) *BoostCache {
	return &BoostCache{load: load}
}

// Boost returns the effective boost for (index, field), loading the index's
// mappings. Concurrent calls for the same index share one load; the loaded
// mappings are not kept once that load returns, so a later call loads again.
func (c *BoostCache) Boost(ctx context.Context, index, field string) (float64, error) {
	mappings, err := c.mappings(ctx, index)
	if err != nil {
		return 0, err
	}

	fm, ok := mappings.FieldMapping(field)
	if !ok {
		return 1.0, nil
	}
	return fm.EffectiveBoost(), nil
}

func (c *BoostCache) mappings(ctx context.Context, index string) (domain.Mappings, error) {
	v, err, _ := c.group.Do(index, func() (any, error) {
		return c.load(ctx, index)
	})
	if err != nil {
		return domain.Mappings{}, err
	}
	return v.(domain.Mappings), nil
}
