package search

import (
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// queryCache memoizes materialized results per query. Keys incorporate the
// index generation, so any index mutation invalidates every older entry
// without explicit eviction.
type queryCache struct {
	entries *lru.Cache[[32]byte, []Result]
}

// newQueryCache creates a cache holding up to size entries. Non-positive
// sizes disable caching and return nil.
func newQueryCache(size int) *queryCache {
	if size <= 0 {
		return nil
	}
	entries, _ := lru.New[[32]byte, []Result](size)
	return &queryCache{entries: entries}
}

// key builds the cache key for one query execution.
func cacheKey(op, query string, limit int, weights Weights, generation uint64) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d\x00%.6f\x00%.6f\x00%d",
		op, query, limit, weights.Keyword, weights.Semantic, generation)))
}

// get returns a copy of the cached results, so callers can mutate their
// slice freely.
func (c *queryCache) get(key [32]byte) ([]Result, bool) {
	if c == nil {
		return nil, false
	}
	cached, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return copyResults(cached), true
}

// put stores a copy of results under key.
func (c *queryCache) put(key [32]byte, results []Result) {
	if c == nil {
		return
	}
	c.entries.Add(key, copyResults(results))
}

func copyResults(results []Result) []Result {
	out := make([]Result, len(results))
	copy(out, results)
	for i := range out {
		if out[i].Highlights != nil {
			hl := make([]string, len(out[i].Highlights))
			copy(hl, out[i].Highlights)
			out[i].Highlights = hl
		}
	}
	return out
}
