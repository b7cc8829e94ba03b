// Package search exposes keyword search, semantic search, and weighted
// hybrid fusion over the index. Rankings from the two retrieval paths are
// combined with reciprocal rank fusion.
package search

import (
	"github.com/codequarry/quarry/internal/store"
)

// maxHighlights caps how many content lines accompany one result.
const maxHighlights = 3

// Weights configures the relative importance of keyword vs semantic search.
type Weights struct {
	// Keyword is the weight for inverted-index search (default: 0.4).
	Keyword float64

	// Semantic is the weight for vector search (default: 0.6).
	Semantic float64
}

// DefaultWeights returns the default hybrid weights.
func DefaultWeights() Weights {
	return Weights{
		Keyword:  0.4,
		Semantic: 0.6,
	}
}

// Options configures a hybrid search query.
type Options struct {
	// Limit is the maximum number of results to return. Zero means the
	// engine default; negative values are clamped to 1.
	Limit int

	// Weights overrides the default keyword/semantic weights. Negative
	// components are clamped to 0; if both end up non-positive the engine
	// default applies.
	Weights *Weights
}

// Result is one ranked search hit.
type Result struct {
	// ID is the element id, filePath + ":" + name.
	ID string `json:"id"`

	// FilePath is the source file of the element.
	FilePath string `json:"file_path"`

	// Name is the element's symbolic name.
	Name string `json:"name"`

	// Type classifies the element.
	Type store.ElementType `json:"type"`

	// Relevance is the score that produced this ranking: 1.0 or the
	// matched-term ratio for keyword search, cosine similarity for
	// semantic search, the fused total for hybrid search.
	Relevance float64 `json:"relevance"`

	// Highlights are up to three trimmed content lines containing a query
	// token.
	Highlights []string `json:"highlights"`
}

// Config holds engine-level settings.
type Config struct {
	// DefaultLimit applies when a query does not specify one (default: 5).
	DefaultLimit int

	// MaxLimit bounds any requested limit (default: 100).
	MaxLimit int

	// Weights are the hybrid defaults (default: 0.4 keyword / 0.6 semantic).
	Weights Weights

	// CacheSize is the number of cached query results. Zero means the
	// default (512); negative disables caching.
	CacheSize int
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		DefaultLimit: 5,
		MaxLimit:     100,
		Weights:      DefaultWeights(),
		CacheSize:    512,
	}
}

// withDefaults fills zero-valued fields with standard settings.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = def.DefaultLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = def.MaxLimit
	}
	if c.Weights.Keyword <= 0 && c.Weights.Semantic <= 0 {
		c.Weights = def.Weights
	}
	if c.CacheSize == 0 {
		c.CacheSize = def.CacheSize
	}
	return c
}
