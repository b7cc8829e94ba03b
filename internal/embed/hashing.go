package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/codequarry/quarry/internal/store"
)

// HashingEmbedder generates embeddings by hashing tokens into a fixed number
// of dimensions. Works without external dependencies (no network, no model
// download). Deterministic: the same text always yields the same vector, so
// identical content scores cosine similarity 1.0 against itself.
type HashingEmbedder struct {
	dims     int
	maxBytes int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*HashingEmbedder)(nil)

// HashingOption configures a HashingEmbedder.
type HashingOption func(*HashingEmbedder)

// WithDimensions overrides the embedding dimension.
func WithDimensions(dims int) HashingOption {
	return func(e *HashingEmbedder) {
		if dims > 0 {
			e.dims = dims
		}
	}
}

// WithMaxContentBytes overrides the content truncation limit. Zero or
// negative disables truncation.
func WithMaxContentBytes(n int) HashingOption {
	return func(e *HashingEmbedder) {
		e.maxBytes = n
	}
}

// NewHashingEmbedder creates a hashing embedder with the default dimension
// and content cap.
func NewHashingEmbedder(opts ...HashingOption) *HashingEmbedder {
	e := &HashingEmbedder{
		dims:     DefaultDimensions,
		maxBytes: DefaultMaxContentBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed generates the embedding for a single text.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dims), nil
	}

	vector := e.generateVector(truncateRuneSafe(trimmed, e.maxBytes))
	return normalizeVector(vector), nil
}

// generateVector hashes each token into a dimension slot and accumulates
// counts. Content with no tokens yields the all-zero vector, which
// normalizeVector leaves untouched.
func (e *HashingEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, e.dims)
	for token := range store.Tokenize(text) {
		vector[hashToSlot(token, e.dims)]++
	}
	return vector
}

// hashToSlot uses FNV-64 to map a token to a dimension slot.
func hashToSlot(token string, dims int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(token))
	return int(h.Sum64() % uint64(dims))
}

// truncateRuneSafe cuts s to at most max bytes without splitting a rune.
// Non-positive max disables truncation.
func truncateRuneSafe(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// EmbedBatch generates embeddings for multiple texts.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = emb
	}

	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *HashingEmbedder) ModelName() string {
	return "hashing"
}

// Available checks if the embedder is ready (always true until closed).
func (e *HashingEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *HashingEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
