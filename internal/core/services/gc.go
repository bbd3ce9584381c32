package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/scarab-search/scarab-core/internal/engine/dictionary"
)

// GC periodically drives the term dictionary's eviction so the cache stays
// under its configured memory bound between bursts of indexing. Dirty terms
// are never evicted, so running it concurrently with indexing is safe.
type GC struct {
	dict     *dictionary.TermDictionary
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// GCConfig holds configuration for the eviction loop.
type GCConfig struct {
	Dictionary *dictionary.TermDictionary
	Logger     *slog.Logger
	Interval   time.Duration // default: 1 minute
}

// NewGC creates the eviction loop.
func NewGC(cfg GCConfig) *GC {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &GC{
		dict:     cfg.Dictionary,
		logger:   logger,
		interval: interval,
	}
}

// Start begins the eviction loop. It runs until Stop is called or ctx is
// cancelled.
func (g *GC) Start(ctx context.Context) {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return
	}
	g.running = true
	g.stopCh = make(chan struct{})
	g.doneCh = make(chan struct{})
	g.mu.Unlock()

	g.logger.Info("dictionary gc starting", "interval", g.interval)

	go func() {
		defer close(g.doneCh)
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-g.stopCh:
				return
			case <-ticker.C:
				if evicted := g.dict.Evict(); evicted > 0 {
					g.logger.Debug("dictionary entries evicted", "count", evicted, "remaining", g.dict.Len())
				}
			}
		}
	}()
}

// Stop gracefully stops the eviction loop.
func (g *GC) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	close(g.stopCh)
	g.mu.Unlock()

	<-g.doneCh

	g.mu.Lock()
	g.running = false
	g.mu.Unlock()

	g.logger.Info("dictionary gc stopped")
}
