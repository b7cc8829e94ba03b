package store

import "math"

// VectorStore maps element ids to their embedding vectors and answers
// cosine-similarity queries. It holds every vector in memory and scans
// exhaustively; ranking is exact, not approximate.
//
// The structure is passive; the Indexer serializes access.
type VectorStore struct {
	vectors map[string][]float32
}

// NewVectorStore creates an empty vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{vectors: make(map[string][]float32)}
}

// Put stores vector under id, replacing any previous value.
func (vs *VectorStore) Put(id string, vector []float32) {
	vs.vectors[id] = vector
}

// Remove deletes the vector for id. Unknown ids are no-ops.
func (vs *VectorStore) Remove(id string) {
	delete(vs.vectors, id)
}

// Get returns the stored vector for id.
func (vs *VectorStore) Get(id string) ([]float32, bool) {
	v, ok := vs.vectors[id]
	return v, ok
}

// Similarity returns the cosine similarity between the stored vector for id
// and query. Unknown ids score 0.
func (vs *VectorStore) Similarity(id string, query []float32) float64 {
	v, ok := vs.vectors[id]
	if !ok {
		return 0
	}
	return Cosine(v, query)
}

// Each calls fn for every (id, vector) pair until fn returns false.
// Iteration order is unspecified; callers sort their own results.
func (vs *VectorStore) Each(fn func(id string, vector []float32) bool) {
	for id, v := range vs.vectors {
		if !fn(id, v) {
			return
		}
	}
}

// Len returns the number of stored vectors.
func (vs *VectorStore) Len() int {
	return len(vs.vectors)
}

// Cosine returns the cosine similarity of a and b: their dot product
// divided by the product of their magnitudes. It returns 0 when either
// vector has zero magnitude or the lengths differ, never dividing by zero.
// Components here are nonnegative token counts, so the result is in [0, 1].
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		magA += av * av
		magB += bv * bv
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
