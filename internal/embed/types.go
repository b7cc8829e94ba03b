// Package embed defines the embedding capability used by the index and its
// default hash-based implementation. The index depends only on the Embedder
// interface, so a model-backed implementation can be swapped in without
// touching index or search code.
package embed

import (
	"context"
	"math"
)

const (
	// DefaultDimensions is the embedding dimension of the hashing embedder.
	DefaultDimensions = 128

	// DefaultMaxContentBytes caps how much of an element's content is
	// embedded. Longer content is truncated on a rune boundary, never
	// rejected.
	DefaultMaxContentBytes = 32 * 1024
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length. Zero vectors are
// returned unchanged so that unindexable content stays all-zero.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
