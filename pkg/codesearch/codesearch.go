package codesearch

import (
	"context"
	"log/slog"

	"github.com/codequarry/quarry/internal/embed"
	"github.com/codequarry/quarry/internal/index"
	"github.com/codequarry/quarry/internal/search"
	"github.com/codequarry/quarry/internal/store"
)

// ElementType classifies an indexed code element.
type ElementType string

const (
	// ElementFunction is a function or method.
	ElementFunction ElementType = "function"
	// ElementClass is a class, struct, or other named type.
	ElementClass ElementType = "class"
	// ElementInterface is an interface or trait.
	ElementInterface ElementType = "interface"
	// ElementComment is a standalone comment or documentation block.
	ElementComment ElementType = "comment"
)

// SourceElement is one named piece of a source file to index.
type SourceElement struct {
	Type    ElementType
	Name    string
	Content string
}

// Weights configures the relative importance of the keyword and semantic
// paths in hybrid search. The weights are relative, not proportions, so
// they need not sum to one.
type Weights struct {
	Keyword  float64
	Semantic float64
}

// Options configures one hybrid query.
type Options struct {
	// Limit is the maximum number of results. Zero means the configured
	// default.
	Limit int

	// Weights overrides the configured weights for this query.
	Weights *Weights
}

// Result is one ranked search hit.
type Result struct {
	ID         string      `json:"id"`
	FilePath   string      `json:"file_path"`
	Name       string      `json:"name"`
	Type       ElementType `json:"type"`
	Relevance  float64     `json:"relevance"`
	Highlights []string    `json:"highlights"`
}

// Stats reports aggregate index counters.
type Stats struct {
	FilesIndexed int `json:"files_indexed"`
	Elements     int `json:"elements"`
	Keywords     int `json:"keywords"`
}

// Config tunes an Index. The zero value gives 128-dimension embeddings,
// 0.4/0.6 keyword/semantic weights, a default limit of 5 capped at 100,
// and a 512-entry query cache.
type Config struct {
	// EmbeddingDimensions sets the vector dimension.
	EmbeddingDimensions int

	// MaxContentBytes caps how much of each element is embedded.
	// Negative disables the cap.
	MaxContentBytes int

	// KeywordWeight and SemanticWeight are the hybrid defaults.
	KeywordWeight  float64
	SemanticWeight float64

	// DefaultLimit applies when a query does not specify one.
	DefaultLimit int

	// MaxLimit bounds any requested limit.
	MaxLimit int

	// CacheSize is the number of cached query results. Negative disables
	// caching.
	CacheSize int
}

// Index is a self-contained hybrid code search index. Host applications
// feed it source elements and query it; they never touch the underlying
// stores.
type Index struct {
	embedder *embed.HashingEmbedder
	indexer  *index.Indexer
	engine   *search.Engine
	logger   *slog.Logger
}

// New assembles an Index from cfg. A nil logger falls back to
// slog.Default().
func New(cfg Config, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var embedOpts []embed.HashingOption
	if cfg.EmbeddingDimensions > 0 {
		embedOpts = append(embedOpts, embed.WithDimensions(cfg.EmbeddingDimensions))
	}
	if cfg.MaxContentBytes != 0 {
		embedOpts = append(embedOpts, embed.WithMaxContentBytes(cfg.MaxContentBytes))
	}
	embedder := embed.NewHashingEmbedder(embedOpts...)

	ix, err := index.NewIndexer(embedder)
	if err != nil {
		return nil, err
	}

	eng, err := search.NewEngine(ix, embedder, search.Config{
		DefaultLimit: cfg.DefaultLimit,
		MaxLimit:     cfg.MaxLimit,
		Weights: search.Weights{
			Keyword:  cfg.KeywordWeight,
			Semantic: cfg.SemanticWeight,
		},
		CacheSize: cfg.CacheSize,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("code search index created",
		slog.Int("dimensions", embedder.Dimensions()))

	return &Index{
		embedder: embedder,
		indexer:  ix,
		engine:   eng,
		logger:   logger,
	}, nil
}

// Index adds or replaces one element. The element id is filePath + ":" +
// name, so indexing the same pair again overwrites the previous entry.
func (ix *Index) Index(ctx context.Context, filePath string, elementType ElementType, name, content string) error {
	return ix.indexer.Index(ctx, filePath, store.ElementType(elementType), name, content)
}

// ReindexFile atomically replaces every element of filePath with
// elements. It reports whether the index changed; reindexing identical
// content is a no-op. An empty elements slice removes the file.
func (ix *Index) ReindexFile(ctx context.Context, filePath string, elements []SourceElement) (bool, error) {
	converted := make([]store.SourceElement, len(elements))
	for i, el := range elements {
		converted[i] = store.SourceElement{
			Type:    store.ElementType(el.Type),
			Name:    el.Name,
			Content: el.Content,
		}
	}
	return ix.indexer.ReindexFile(ctx, filePath, converted)
}

// RemoveFile drops every element of filePath and returns how many were
// removed. Removing an unknown file is a no-op.
func (ix *Index) RemoveFile(filePath string) int {
	return ix.indexer.RemoveFile(filePath)
}

// SearchByKeyword runs an inverted-index query.
func (ix *Index) SearchByKeyword(ctx context.Context, query string, limit int) ([]Result, error) {
	results, err := ix.engine.SearchByKeyword(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return convertResults(results), nil
}

// SearchByEmbedding runs a cosine-similarity query.
func (ix *Index) SearchByEmbedding(ctx context.Context, query string, limit int) ([]Result, error) {
	results, err := ix.engine.SearchByEmbedding(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return convertResults(results), nil
}

// Search runs both paths and fuses the rankings with reciprocal rank
// fusion. When the embedder is unavailable the keyword path alone
// answers.
func (ix *Index) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	internal := search.Options{Limit: opts.Limit}
	if opts.Weights != nil {
		internal.Weights = &search.Weights{
			Keyword:  opts.Weights.Keyword,
			Semantic: opts.Weights.Semantic,
		}
	}

	results, err := ix.engine.Search(ctx, query, internal)
	if err != nil {
		return nil, err
	}
	return convertResults(results), nil
}

// Stats reports index counters consistent with one point in time.
func (ix *Index) Stats() Stats {
	s := ix.indexer.Stats()
	return Stats{
		FilesIndexed: s.FilesIndexed,
		Elements:     s.TotalEmbeddings,
		Keywords:     s.TotalKeywords,
	}
}

// Close releases the embedder. Queries needing embeddings fail after
// Close; keyword search keeps working.
func (ix *Index) Close() error {
	ix.logger.Debug("code search index closed")
	return ix.embedder.Close()
}

func convertResults(results []search.Result) []Result {
	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{
			ID:         r.ID,
			FilePath:   r.FilePath,
			Name:       r.Name,
			Type:       ElementType(r.Type),
			Relevance:  r.Relevance,
			Highlights: r.Highlights,
		}
	}
	return out
}
