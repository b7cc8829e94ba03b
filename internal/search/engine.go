package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codequarry/quarry/internal/embed"
	"github.com/codequarry/quarry/internal/index"
	"github.com/codequarry/quarry/internal/store"
	"github.com/codequarry/quarry/internal/telemetry"
)

// Engine answers keyword, semantic, and hybrid queries against one index.
// Every query runs inside a single index view, so the two retrieval paths of
// a hybrid search always agree on the snapshot they rank.
type Engine struct {
	index    *index.Indexer
	embedder embed.Embedder
	config   Config
	cache    *queryCache
	metrics  *telemetry.Metrics
}

// NewEngine creates a search engine over idx. The embedder must be the same
// implementation the index was built with, or query vectors will not live in
// the same space as stored ones.
func NewEngine(idx *index.Indexer, embedder embed.Embedder, config Config) (*Engine, error) {
	if idx == nil {
		return nil, fmt.Errorf("index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	config = config.withDefaults()
	return &Engine{
		index:    idx,
		embedder: embedder,
		config:   config,
		cache:    newQueryCache(config.CacheSize),
		metrics:  telemetry.NewMetrics(telemetry.Config{}),
	}, nil
}

// QueryMetrics reports aggregate query telemetry since the engine was
// created. Cache hits count as queries.
func (e *Engine) QueryMetrics() telemetry.Snapshot {
	return e.metrics.Snapshot()
}

// record folds one answered query into the telemetry aggregates. Failed
// queries are not recorded.
func (e *Engine) record(qt telemetry.QueryType, query string, results int, start time.Time) {
	e.metrics.Record(telemetry.Event{
		Query:   query,
		Type:    qt,
		Results: results,
		Latency: time.Since(start),
	})
}

// SearchByKeyword looks the query up in the inverted index. A single-term
// query scores every match 1.0; multi-term queries use OR semantics with
// relevance equal to the fraction of terms matched. No match yields an empty
// list, not an error.
func (e *Engine) SearchByKeyword(ctx context.Context, query string, limit int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	limit = e.clampLimit(limit)

	v := e.index.ReadView()
	defer v.Close()

	key := cacheKey("keyword", query, limit, Weights{}, v.Generation())
	if cached, ok := e.cache.get(key); ok {
		e.record(telemetry.QueryKeyword, query, len(cached), start)
		return cached, nil
	}

	terms := e.queryTerms(query)
	results := e.materialize(v, rankKeyword(v, terms, limit), terms)

	e.cache.put(key, results)
	e.record(telemetry.QueryKeyword, query, len(results), start)
	return results, nil
}

// SearchByEmbedding embeds the query with the index's embedder and ranks
// every stored vector by cosine similarity, best first.
func (e *Engine) SearchByEmbedding(ctx context.Context, query string, limit int) ([]Result, error) {
	start := time.Now()
	limit = e.clampLimit(limit)

	v := e.index.ReadView()
	defer v.Close()

	key := cacheKey("semantic", query, limit, Weights{}, v.Generation())
	if cached, ok := e.cache.get(key); ok {
		e.record(telemetry.QuerySemantic, query, len(cached), start)
		return cached, nil
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	terms := e.queryTerms(query)
	results := e.materialize(v, rankSemantic(v, queryVec, limit), terms)

	e.cache.put(key, results)
	e.record(telemetry.QuerySemantic, query, len(results), start)
	return results, nil
}

// Search runs the weighted hybrid query: both retrieval paths fetch 2*limit
// candidates in parallel, reciprocal rank fusion combines them, and the top
// limit results are returned. If the embedder is unavailable the semantic
// path degrades to empty rather than failing the query.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	start := time.Now()
	limit := e.clampLimit(opts.Limit)
	weights := e.normalizeWeights(opts.Weights)

	v := e.index.ReadView()
	defer v.Close()

	key := cacheKey("hybrid", query, limit, weights, v.Generation())
	if cached, ok := e.cache.get(key); ok {
		e.record(telemetry.QueryHybrid, query, len(cached), start)
		return cached, nil
	}

	terms := e.queryTerms(query)
	fetch := 2 * limit

	var keywordHits, semanticHits []ranked
	var embedErr error

	g, gctx := errgroup.WithContext(ctx)
	if weights.Keyword > 0 {
		g.Go(func() error {
			keywordHits = rankKeyword(v, terms, fetch)
			return nil
		})
	}
	if weights.Semantic > 0 {
		g.Go(func() error {
			queryVec, err := e.embedder.Embed(gctx, query)
			if err != nil {
				embedErr = err
				return nil
			}
			semanticHits = rankSemantic(v, queryVec, fetch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if embedErr != nil {
		if errors.Is(embedErr, context.Canceled) || errors.Is(embedErr, context.DeadlineExceeded) {
			return nil, embedErr
		}
		slog.Warn("semantic path unavailable, degrading to keyword results",
			slog.String("error", embedErr.Error()))
	}

	fused := fuse(keywordHits, semanticHits, weights)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	hits := make([]ranked, len(fused))
	for i, h := range fused {
		hits[i] = ranked{id: h.id, score: h.score}
	}
	results := e.materialize(v, hits, terms)

	slog.Debug("hybrid search",
		slog.String("query", query),
		slog.Int("keyword_hits", len(keywordHits)),
		slog.Int("semantic_hits", len(semanticHits)),
		slog.Int("results", len(results)))

	e.cache.put(key, results)
	e.record(telemetry.QueryHybrid, query, len(results), start)
	return results, nil
}

// clampLimit resolves the effective result limit: zero means the configured
// default, negatives clamp to 1, and MaxLimit bounds the rest.
func (e *Engine) clampLimit(limit int) int {
	switch {
	case limit == 0:
		return e.config.DefaultLimit
	case limit < 0:
		return 1
	case limit > e.config.MaxLimit:
		return e.config.MaxLimit
	default:
		return limit
	}
}

// normalizeWeights resolves the effective hybrid weights. Negative
// components clamp to 0; if nothing positive remains the configured defaults
// apply.
func (e *Engine) normalizeWeights(w *Weights) Weights {
	if w == nil {
		return e.config.Weights
	}

	out := *w
	if out.Keyword < 0 {
		out.Keyword = 0
	}
	if out.Semantic < 0 {
		out.Semantic = 0
	}
	if out.Keyword == 0 && out.Semantic == 0 {
		return e.config.Weights
	}
	return out
}

// queryTerms tokenizes the lowercased query. Queries whose every token is
// shorter than the tokenizer's minimum fall back to the whole trimmed query
// as a single term, so lookups like "db" still hit exact postings.
func (e *Engine) queryTerms(query string) []string {
	lowered := strings.ToLower(strings.TrimSpace(query))
	if lowered == "" {
		return nil
	}

	terms := store.TokenizeAll(lowered)
	if len(terms) == 0 {
		return []string{lowered}
	}
	return terms
}

// rankKeyword ranks inverted-index matches for terms, best first, truncated
// to n. Single-term queries score 1.0 per match; multi-term queries score
// the fraction of terms matched. Ties break by id.
func rankKeyword(v *index.View, terms []string, n int) []ranked {
	if len(terms) == 0 {
		return []ranked{}
	}

	if len(terms) == 1 {
		ids := v.LookupKeyword(terms[0])
		hits := make([]ranked, 0, len(ids))
		for _, id := range ids {
			hits = append(hits, ranked{id: id, score: 1.0})
		}
		return truncateRanked(hits, n)
	}

	matched := make(map[string]int)
	for _, term := range terms {
		for _, id := range v.LookupKeyword(term) {
			matched[id]++
		}
	}

	hits := make([]ranked, 0, len(matched))
	for id, count := range matched {
		hits = append(hits, ranked{id: id, score: float64(count) / float64(len(terms))})
	}
	sortRanked(hits)
	return truncateRanked(hits, n)
}

// rankSemantic ranks every stored vector by cosine similarity against
// queryVec, best first, truncated to n. Zero similarities rank last rather
// than disappearing, so a small corpus still fills the requested limit.
func rankSemantic(v *index.View, queryVec []float32, n int) []ranked {
	hits := make([]ranked, 0, 16)
	v.EachVector(func(id string, vec []float32) bool {
		hits = append(hits, ranked{id: id, score: store.Cosine(queryVec, vec)})
		return true
	})
	sortRanked(hits)
	return truncateRanked(hits, n)
}

func sortRanked(hits []ranked) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})
}

func truncateRanked(hits []ranked, n int) []ranked {
	if n >= 0 && len(hits) > n {
		return hits[:n]
	}
	return hits
}

// materialize resolves ranked ids into full results through the view.
func (e *Engine) materialize(v *index.View, hits []ranked, terms []string) []Result {
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		el, ok := v.Element(hit.id)
		if !ok {
			continue
		}
		results = append(results, Result{
			ID:         el.ID,
			FilePath:   el.FilePath,
			Name:       el.Name,
			Type:       el.Type,
			Relevance:  hit.score,
			Highlights: highlightLines(el.Content, terms),
		})
	}
	return results
}

// highlightLines returns up to maxHighlights trimmed content lines that
// contain any query term, in content order.
func highlightLines(content string, terms []string) []string {
	highlights := []string{}
	if content == "" || len(terms) == 0 {
		return highlights
	}

	for _, line := range strings.Split(content, "\n") {
		lower := strings.ToLower(line)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				highlights = append(highlights, strings.TrimSpace(line))
				break
			}
		}
		if len(highlights) == maxHighlights {
			break
		}
	}
	return highlights
}
