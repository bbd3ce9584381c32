// Package dictionary implements the in-memory, index-aware term
// dictionary: a bounded-memory cache of TermKey -> posting list with
// approximate-LRU eviction and dirty-term tracking for the persistence
// pipeline.
package dictionary

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scarab-search/scarab-core/internal/core/domain"
	"github.com/scarab-search/scarab-core/internal/engine/postings"
)

// Checkpoint is an opaque token marking a point in the dictionary's mutation
// history; DirtyTermsSince(cp) returns keys mutated after cp.
type Checkpoint uint64

// Config configures a TermDictionary.
type Config struct {
	// Cap is the maximum number of term keys held in memory.
	Cap int

	// EvictionThreshold is the fraction of Cap the dictionary shrinks to
	// once eviction runs, in (0,1].
	EvictionThreshold float64
}

// DefaultConfig returns sensible defaults: a 100,000-term cap and a 0.8
// eviction threshold (evict down to 80% of capacity).
func DefaultConfig() Config {
	return Config{Cap: 100_000, EvictionThreshold: 0.8}
}

// TermDictionary is a bounded, index-aware cache of TermKey -> *postings.List.
// Mutations are serialized by an internal mutex; reads may proceed
// concurrently against the returned *postings.List, which guards itself.
type TermDictionary struct {
	mu     sync.Mutex
	cap    int
	evictT float64

	cache *lru.Cache[domain.TermKey, *postings.List]

	// byIndex tracks which term keys belong to which index, for
	// getTerms(index) and clear(index) without scanning the whole cache.
	byIndex map[string]map[domain.TermKey]struct{}

	// dirty holds term keys mutated since their last persistence commit,
	// together with the checkpoint at which they were marked dirty. Dirty
	// keys are pinned against eviction.
	dirty map[domain.TermKey]Checkpoint

	clock Checkpoint
}

// New constructs a TermDictionary. A non-positive cap or an out-of-range
// eviction threshold is replaced by the DefaultConfig value.
func New(cfg Config) *TermDictionary {
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultConfig().Cap
	}
	if cfg.EvictionThreshold <= 0 || cfg.EvictionThreshold > 1 {
		cfg.EvictionThreshold = DefaultConfig().EvictionThreshold
	}

	cache, err := lru.New[domain.TermKey, *postings.List](cfg.Cap)
	if err != nil {
		// Only fails for a non-positive size, already normalized above.
		panic(err)
	}

	return &TermDictionary{
		cap:     cfg.Cap,
		evictT:  cfg.EvictionThreshold,
		cache:   cache,
		byIndex: make(map[string]map[domain.TermKey]struct{}),
		dirty:   make(map[domain.TermKey]Checkpoint),
	}
}

// GetTerms returns the term keys currently cached for one index.
func (d *TermDictionary) GetTerms(index string) []domain.TermKey {
	d.mu.Lock()
	defer d.mu.Unlock()

	set := d.byIndex[index]
	keys := make([]domain.TermKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}

// GetPostingList returns the cached posting list for (index, field, token),
// or nil if absent.
func (d *TermDictionary) GetPostingList(index, field, token string) *postings.List {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := domain.NewTermKey(index, field, token)
	list, ok := d.cache.Get(key)
	if !ok {
		return nil
	}
	return list
}

// UpsertEntry adds or updates one posting entry under (index, field, token),
// creating the list if missing, and marks the key dirty.
func (d *TermDictionary) UpsertEntry(index, field, token string, entry domain.PostingEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := domain.NewTermKey(index, field, token)
	list, ok := d.cache.Get(key)
	if !ok {
		list = postings.New()
		// Make room before Add so the LRU never drops a dirty key on its own.
		if d.cache.Len() >= d.cap {
			freed := false
			for _, k := range d.cache.Keys() {
				if _, isDirty := d.dirty[k]; !isDirty {
					d.cache.Remove(k)
					delete(d.byIndex[k.Index], k)
					freed = true
					break
				}
			}
			if !freed {
				d.cache.Resize(d.cache.Len() + 1)
			}
		}
		d.cache.Add(key, list)
		d.trackIndexLocked(key)
	}
	list.UpsertEntry(entry)
	d.markDirtyLocked(key)
}

// RemoveEntry removes a document's posting from (index, field, token), used
// to reverse indexing on document delete. It is a no-op if the term key is
// not cached (the change still propagates through the persistence pipeline
// via the caller's dirty-term bookkeeping).
func (d *TermDictionary) RemoveEntry(index, field, token, docID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := domain.NewTermKey(index, field, token)
	list, ok := d.cache.Get(key)
	if !ok {
		return
	}
	list.RemoveEntry(docID)
	d.markDirtyLocked(key)
}

// DirtyTermsSince enumerates term keys mutated after checkpoint. Pass the
// zero Checkpoint for "all dirty keys".
func (d *TermDictionary) DirtyTermsSince(checkpoint Checkpoint) []domain.TermKey {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := make([]domain.TermKey, 0, len(d.dirty))
	for k, at := range d.dirty {
		if at > checkpoint {
			keys = append(keys, k)
		}
	}
	return keys
}

// Checkpoint returns the dictionary's current mutation clock, to be passed
// to a later DirtyTermsSince call.
func (d *TermDictionary) Checkpoint() Checkpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clock
}

// MarkClean removes keys from the dirty set once their persistence job has
// committed, unpinning them from eviction.
func (d *TermDictionary) MarkClean(keys []domain.TermKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, k := range keys {
		delete(d.dirty, k)
	}
}

// Clear drops all cached state for an index.
func (d *TermDictionary) Clear(index string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key := range d.byIndex[index] {
		d.cache.Remove(key)
		delete(d.dirty, key)
	}
	delete(d.byIndex, index)
}

// Evict reduces memory use to below the configured threshold, dropping the
// least-recently-used non-dirty entries first. Dirty entries are never
// evicted: they're retained until the persistence pipeline acknowledges
// commit via MarkClean.
func (d *TermDictionary) Evict() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	target := int(float64(d.cap) * d.evictT)
	toEvict := d.cache.Len() - target
	if toEvict <= 0 {
		return 0
	}

	// Keys() returns the cache's current contents in oldest-to-newest LRU
	// order; walk it front-to-back and drop the first toEvict non-dirty
	// keys. Dirty keys are skipped in place rather than evicted.
	evicted := 0
	for _, key := range d.cache.Keys() {
		if evicted >= toEvict {
			break
		}
		if _, isDirty := d.dirty[key]; isDirty {
			continue
		}
		d.cache.Remove(key)
		if set, ok := d.byIndex[key.Index]; ok {
			delete(set, key)
		}
		evicted++
	}

	return evicted
}

func (d *TermDictionary) trackIndexLocked(key domain.TermKey) {
	set, ok := d.byIndex[key.Index]
	if !ok {
		set = make(map[domain.TermKey]struct{})
		d.byIndex[key.Index] = set
	}
	set[key] = struct{}{}
}

func (d *TermDictionary) markDirtyLocked(key domain.TermKey) {
	d.clock++
	d.dirty[key] = d.clock
}

// Len returns the number of term keys currently cached, across all indexes.
func (d *TermDictionary) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.Len()
}
