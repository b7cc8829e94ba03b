package search

import (
	"sort"
)

// ranked is one entry of a single-path result list, ordered best first.
type ranked struct {
	id    string
	score float64
}

// fusedHit is one entry after reciprocal rank fusion.
type fusedHit struct {
	id    string
	score float64

	// 1-indexed positions in the source lists, 0 if absent. Kept for
	// logging and tests; they do not influence ordering.
	keywordRank  int
	semanticRank int
}

// fuse combines the keyword and semantic lists with reciprocal rank fusion.
//
// An id at 0-based rank r in a list with weight w contributes w / (r + 1);
// contributions sum per id across both lists, and an id appearing in only
// one list receives only that list's contribution. Ids whose total is zero
// are dropped. Results sort by total descending, ties broken by id for
// determinism.
func fuse(keyword, semantic []ranked, weights Weights) []fusedHit {
	if len(keyword) == 0 && len(semantic) == 0 {
		return []fusedHit{}
	}

	hits := make(map[string]*fusedHit, len(keyword)+len(semantic))

	for r, entry := range keyword {
		h := getOrCreate(hits, entry.id)
		h.keywordRank = r + 1
		h.score += weights.Keyword / float64(r+1)
	}

	for r, entry := range semantic {
		h := getOrCreate(hits, entry.id)
		h.semanticRank = r + 1
		h.score += weights.Semantic / float64(r+1)
	}

	fused := make([]fusedHit, 0, len(hits))
	for _, h := range hits {
		if h.score <= 0 {
			continue
		}
		fused = append(fused, *h)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].id < fused[j].id
	})

	return fused
}

// getOrCreate returns the existing hit for id or registers a new one.
func getOrCreate(m map[string]*fusedHit, id string) *fusedHit {
	if h, ok := m[id]; ok {
		return h
	}
	h := &fusedHit{id: id}
	m[id] = h
	return h
}
