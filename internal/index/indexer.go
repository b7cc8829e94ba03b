// Package index owns the lifecycle of indexed code elements. The Indexer is
// the single writer for the inverted keyword index, the vector store, the
// element store, and the file registry; nothing else mutates them. Searches
// read through a View, which pins a consistent snapshot for the duration of
// one query.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/codequarry/quarry/internal/embed"
	"github.com/codequarry/quarry/internal/store"
)

// DefaultMaxElementBytes caps how much of an element's content is stored and
// processed. Oversized content is truncated on a rune boundary, never
// rejected, so a pathologically large element cannot stall indexing.
const DefaultMaxElementBytes = 64 * 1024

// Option configures an Indexer.
type Option func(*Indexer)

// WithMaxElementBytes overrides the per-element content cap. Zero or
// negative disables truncation.
func WithMaxElementBytes(n int) Option {
	return func(ix *Indexer) {
		ix.maxElementBytes = n
	}
}

// Indexer ingests, replaces, and removes code elements per source file. All
// mutation happens under a single writer lock; the remove-then-insert swap
// for one file is a single critical section, so a concurrent search never
// observes a half-updated file.
type Indexer struct {
	embedder        embed.Embedder
	maxElementBytes int

	mu         sync.RWMutex
	elements   *store.ElementStore
	keywords   *store.InvertedIndex
	vectors    *store.VectorStore
	registry   *store.FileRegistry
	generation uint64
}

// NewIndexer creates an empty index writing through the given embedder.
func NewIndexer(embedder embed.Embedder, opts ...Option) (*Indexer, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	ix := &Indexer{
		embedder:        embedder,
		maxElementBytes: DefaultMaxElementBytes,
		elements:        store.NewElementStore(),
		keywords:        store.NewInvertedIndex(),
		vectors:         store.NewVectorStore(),
		registry:        store.NewFileRegistry(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// Index upserts a single element. Calling it twice with identical
// filePath/name/content is a no-op the second time: no duplicate postings,
// no stats change. Changed content replaces the element wholesale and purges
// its old postings.
func (ix *Indexer) Index(ctx context.Context, filePath string, elementType store.ElementType, name, content string) error {
	el, err := ix.buildElement(ctx, filePath, store.SourceElement{
		Type:    elementType,
		Name:    name,
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("failed to build element %s: %w", store.ElementID(filePath, name), err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if old, ok := ix.elements.Get(el.ID); ok {
		if old.Type == el.Type && old.Content == el.Content {
			return nil
		}
		ix.removeElementLocked(old)
	}

	ix.insertElementLocked(el)
	ix.refreshFileHashLocked(filePath)
	ix.generation++

	return nil
}

// ReindexFile replaces the whole element set of filePath. The content hash
// of the canonicalized set gates the operation: an unchanged file is a
// no-op. Otherwise every id previously registered under filePath is purged
// before the new set is inserted, all within one critical section. Returns
// whether the index changed.
func (ix *Indexer) ReindexFile(ctx context.Context, filePath string, elements []store.SourceElement) (bool, error) {
	canon := store.CanonicalizeElements(elements)
	for i := range canon {
		canon[i].Content = truncateRuneSafe(canon[i].Content, ix.maxElementBytes)
	}
	hash := store.HashElements(canon)

	ix.mu.RLock()
	stored, registered := ix.registry.Hash(filePath)
	ix.mu.RUnlock()

	if registered && stored == hash {
		return false, nil
	}
	if !registered && len(canon) == 0 {
		return false, nil
	}

	// Embedding is the expensive part; do it before taking the write lock.
	fresh := make([]*store.CodeElement, 0, len(canon))
	for _, src := range canon {
		el, err := ix.buildElement(ctx, filePath, src)
		if err != nil {
			return false, fmt.Errorf("failed to build element %s: %w", store.ElementID(filePath, src.Name), err)
		}
		fresh = append(fresh, el)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	// Another writer may have landed the same content while we were
	// embedding. Last write wins for anything else.
	if stored, ok := ix.registry.Hash(filePath); ok && stored == hash {
		return false, nil
	}

	removed := ix.removeFileLocked(filePath)
	for _, el := range fresh {
		ix.insertElementLocked(el)
	}
	ix.registry.Set(filePath, hash)
	ix.generation++

	slog.Debug("reindexed file",
		slog.String("path", filePath),
		slog.Int("removed", removed),
		slog.Int("inserted", len(fresh)))

	return true, nil
}

// RemoveFile removes every element belonging to filePath and drops its
// registry entry. Removing an unregistered path is a no-op, not an error.
// Returns the number of elements removed.
func (ix *Indexer) RemoveFile(filePath string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, registered := ix.registry.Hash(filePath)
	removed := ix.removeFileLocked(filePath)
	if !registered && removed == 0 {
		return 0
	}

	ix.registry.Delete(filePath)
	ix.generation++
	return removed
}

// Paths returns every indexed file path, sorted.
func (ix *Indexer) Paths() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.registry.Paths()
}

// PathsUnder returns the indexed paths equal to prefix or inside the
// directory prefix, sorted. A deleted directory fans out to these.
func (ix *Indexer) PathsUnder(prefix string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.registry.PathsUnder(prefix)
}

// Stats reports aggregate counters, consistent with the current index state.
func (ix *Indexer) Stats() store.IndexStats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return store.IndexStats{
		TotalEmbeddings: ix.elements.Len(),
		TotalKeywords:   ix.keywords.DistinctKeywords(),
		FilesIndexed:    ix.registry.Len(),
	}
}

// Generation returns the mutation counter. It advances on every change to
// the index and anchors cache keys to a snapshot.
func (ix *Indexer) Generation() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.generation
}

// ReadView pins a consistent snapshot of the index for the duration of one
// query. The caller must Close it; writers block until every open view is
// closed.
func (ix *Indexer) ReadView() *View {
	ix.mu.RLock()
	return &View{ix: ix}
}

// View is a read handle over a pinned index snapshot. Safe for concurrent
// use by multiple goroutines of the same query.
type View struct {
	ix        *Indexer
	closeOnce sync.Once
}

// Close releases the snapshot. Idempotent.
func (v *View) Close() {
	v.closeOnce.Do(v.ix.mu.RUnlock)
}

// Generation returns the mutation counter of the pinned snapshot.
func (v *View) Generation() uint64 {
	return v.ix.generation
}

// LookupKeyword returns the sorted element ids posted under term.
func (v *View) LookupKeyword(term string) []string {
	return v.ix.keywords.Lookup(term)
}

// EachVector visits every stored embedding until fn returns false.
func (v *View) EachVector(fn func(id string, vec []float32) bool) {
	v.ix.vectors.Each(fn)
}

// Element returns the element for id. The result must be treated as
// immutable.
func (v *View) Element(id string) (*store.CodeElement, bool) {
	return v.ix.elements.Get(id)
}

// buildElement derives the stored record for one source element: capped
// content, extracted keywords, and the embedding vector.
func (ix *Indexer) buildElement(ctx context.Context, filePath string, src store.SourceElement) (*store.CodeElement, error) {
	content := truncateRuneSafe(src.Content, ix.maxElementBytes)

	vec, err := ix.embedder.Embed(ctx, content)
	if err != nil {
		return nil, err
	}

	return &store.CodeElement{
		ID:        store.ElementID(filePath, src.Name),
		FilePath:  filePath,
		Type:      src.Type,
		Name:      src.Name,
		Content:   content,
		Keywords:  store.ExtractKeywords(content),
		Embedding: vec,
	}, nil
}

// insertElementLocked writes el into all three stores. Callers hold the
// write lock.
func (ix *Indexer) insertElementLocked(el *store.CodeElement) {
	ix.elements.Put(el)
	for _, kw := range el.Keywords {
		ix.keywords.Insert(kw, el.ID)
	}
	ix.vectors.Put(el.ID, el.Embedding)
}

// removeElementLocked purges el from all three stores, including every
// keyword posting, so no stale match can survive a rename or deletion.
// Callers hold the write lock.
func (ix *Indexer) removeElementLocked(el *store.CodeElement) {
	for _, kw := range el.Keywords {
		ix.keywords.Remove(kw, el.ID)
	}
	ix.vectors.Remove(el.ID)
	ix.elements.Remove(el.ID)
}

// removeFileLocked purges every element of filePath and returns how many
// were removed. Callers hold the write lock.
func (ix *Indexer) removeFileLocked(filePath string) int {
	ids := ix.elements.FileIDs(filePath)
	for _, id := range ids {
		if el, ok := ix.elements.Get(id); ok {
			ix.removeElementLocked(el)
		}
	}
	return len(ids)
}

// refreshFileHashLocked recomputes the registry hash for filePath from the
// elements currently stored for it, keeping single-element upserts and
// whole-file reindexes interchangeable. Callers hold the write lock.
func (ix *Indexer) refreshFileHashLocked(filePath string) {
	ids := ix.elements.FileIDs(filePath)
	set := make([]store.SourceElement, 0, len(ids))
	for _, id := range ids {
		if el, ok := ix.elements.Get(id); ok {
			set = append(set, store.SourceElement{
				Type:    el.Type,
				Name:    el.Name,
				Content: el.Content,
			})
		}
	}
	ix.registry.Set(filePath, store.HashElements(set))
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
