// Package runtime holds the engine composition context: the shared
// in-process state every service operates on, constructed once in the
// composition root with a total initialization order.
package runtime

import (
	"github.com/scarab-search/scarab-core/internal/engine/dictionary"
	"github.com/scarab-search/scarab-core/internal/engine/scorer"
	"github.com/scarab-search/scarab-core/internal/engine/stats"
)

// Engine bundles the in-memory engine state: the bounded term dictionary,
// the per-index corpus stats registry, and the BM25 scorer. Services
// receive it explicitly; no component reaches for a global.
type Engine struct {
	Dictionary *dictionary.TermDictionary
	Stats      *stats.Registry
	Scorer     *scorer.BM25
}

// Config parameterizes a new Engine.
type Config struct {
	Dictionary dictionary.Config
	Scorer     scorer.Params
}

// NewEngine constructs the engine context.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		Dictionary: dictionary.New(cfg.Dictionary),
		Stats:      stats.NewRegistry(),
		Scorer:     scorer.New(cfg.Scorer),
	}
}
