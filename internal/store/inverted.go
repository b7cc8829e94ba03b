package store

import "sort"

// InvertedIndex maps each keyword to the set of element ids whose keyword
// set contains it. Posting sets are deleted when they empty out so the
// distinct-keyword count stays exact.
//
// The structure is passive; the Indexer serializes access.
type InvertedIndex struct {
	postings map[string]map[string]struct{}
}

// NewInvertedIndex creates an empty inverted index.
func NewInvertedIndex() *InvertedIndex {
	return &InvertedIndex{postings: make(map[string]map[string]struct{})}
}

// Insert records that the element id contains keyword. Inserting the same
// pair twice is a no-op.
func (ix *InvertedIndex) Insert(keyword, id string) {
	set, ok := ix.postings[keyword]
	if !ok {
		set = make(map[string]struct{})
		ix.postings[keyword] = set
	}
	set[id] = struct{}{}
}

// Remove deletes the posting for (keyword, id). Unknown pairs are no-ops.
func (ix *InvertedIndex) Remove(keyword, id string) {
	set, ok := ix.postings[keyword]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(ix.postings, keyword)
	}
}

// Lookup returns the ids posted under keyword, sorted for deterministic
// ranking. Unknown keywords yield an empty slice, never nil.
func (ix *InvertedIndex) Lookup(keyword string) []string {
	set := ix.postings[keyword]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DistinctKeywords returns the number of keywords with at least one posting.
func (ix *InvertedIndex) DistinctKeywords() int {
	return len(ix.postings)
}
