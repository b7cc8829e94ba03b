package index

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codequarry/quarry/internal/embed"
	"github.com/codequarry/quarry/internal/store"
)

func newTestIndexer(t *testing.T, opts ...Option) *Indexer {
	t.Helper()
	embedder := embed.NewHashingEmbedder()
	t.Cleanup(func() { _ = embedder.Close() })

	ix, err := NewIndexer(embedder, opts...)
	require.NoError(t, err)
	return ix
}

func lookupIDs(ix *Indexer, term string) []string {
	v := ix.ReadView()
	defer v.Close()
	return v.LookupKeyword(term)
}

func TestNewIndexer_RequiresEmbedder(t *testing.T) {
	_, err := NewIndexer(nil)

	assert.Error(t, err)
}

// ============================================================================
// Single-Element Upserts
// ============================================================================

func TestIndexer_Index_CreatesElement(t *testing.T) {
	// Given: an empty index
	ix := newTestIndexer(t)

	// When: I index one element
	err := ix.Index(context.Background(), "src/auth.ts", store.ElementFunction, "login",
		"function login(password) { return issueToken(password) }")
	require.NoError(t, err)

	// Then: the element is stored under filePath + ":" + name
	v := ix.ReadView()
	defer v.Close()

	el, ok := v.Element("src/auth.ts:login")
	require.True(t, ok)
	assert.Equal(t, "src/auth.ts", el.FilePath)
	assert.Equal(t, "login", el.Name)
	assert.Equal(t, store.ElementFunction, el.Type)
	assert.Contains(t, el.Keywords, "password")
	assert.Len(t, el.Embedding, embed.DefaultDimensions)

	stats := ix.Stats()
	assert.Equal(t, 1, stats.TotalEmbeddings)
	assert.Equal(t, 1, stats.FilesIndexed)
}

func TestIndexer_Index_TwiceIsIdempotent(t *testing.T) {
	// Given: an element indexed once
	ix := newTestIndexer(t)
	ctx := context.Background()
	require.NoError(t, ix.Index(ctx, "a.ts", store.ElementFunction, "f", "validate password input"))

	before := ix.Stats()
	gen := ix.Generation()

	// When: I index the identical element again
	require.NoError(t, ix.Index(ctx, "a.ts", store.ElementFunction, "f", "validate password input"))

	// Then: stats, postings, and the generation counter are unchanged
	assert.Equal(t, before, ix.Stats())
	assert.Equal(t, gen, ix.Generation())
	assert.Equal(t, []string{"a.ts:f"}, lookupIDs(ix, "password"))
}

func TestIndexer_Index_ChangedContentReplacesWholesale(t *testing.T) {
	// Given: an element whose content mentions "password"
	ix := newTestIndexer(t)
	ctx := context.Background()
	require.NoError(t, ix.Index(ctx, "a.ts", store.ElementFunction, "f", "check password digest"))

	// When: the same id is indexed with content mentioning "email" instead
	require.NoError(t, ix.Index(ctx, "a.ts", store.ElementFunction, "f", "check email format"))

	// Then: the old posting is purged and the new one present
	assert.Empty(t, lookupIDs(ix, "password"))
	assert.Equal(t, []string{"a.ts:f"}, lookupIDs(ix, "email"))
	assert.Equal(t, 1, ix.Stats().TotalEmbeddings)
}

func TestIndexer_Index_RegistersFile(t *testing.T) {
	ix := newTestIndexer(t)

	require.NoError(t, ix.Index(context.Background(), "a.ts", store.ElementFunction, "f", "content body"))

	assert.Equal(t, 1, ix.Stats().FilesIndexed)
}

// ============================================================================
// Whole-File Reindex
// ============================================================================

func TestIndexer_ReindexFile_IndexesNewFile(t *testing.T) {
	ix := newTestIndexer(t)

	changed, err := ix.ReindexFile(context.Background(), "src/user.ts", []store.SourceElement{
		{Type: store.ElementFunction, Name: "findUser", Content: "lookup user by email in the map"},
		{Type: store.ElementClass, Name: "UserService", Content: "class handling user records"},
	})

	require.NoError(t, err)
	assert.True(t, changed)

	stats := ix.Stats()
	assert.Equal(t, 2, stats.TotalEmbeddings)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, []string{"src/user.ts:findUser"}, lookupIDs(ix, "email"))
}

func TestIndexer_ReindexFile_UnchangedContentIsNoop(t *testing.T) {
	// Given: a file indexed once
	ix := newTestIndexer(t)
	ctx := context.Background()
	elements := []store.SourceElement{
		{Type: store.ElementFunction, Name: "g", Content: "parse config yaml"},
		{Type: store.ElementFunction, Name: "f", Content: "watch directory events"},
	}
	_, err := ix.ReindexFile(ctx, "w.ts", elements)
	require.NoError(t, err)
	gen := ix.Generation()

	// When: I reindex with the same elements in a different order
	reordered := []store.SourceElement{elements[1], elements[0]}
	changed, err := ix.ReindexFile(ctx, "w.ts", reordered)

	// Then: the content hash matches and nothing moves
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, gen, ix.Generation())
}

func TestIndexer_ReindexFile_PurgesStalePostings(t *testing.T) {
	// Given: a file whose element mentions "foo"
	ix := newTestIndexer(t)
	ctx := context.Background()
	_, err := ix.ReindexFile(ctx, "f.ts", []store.SourceElement{
		{Type: store.ElementFunction, Name: "handler", Content: "foo bar baz"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"f.ts:handler"}, lookupIDs(ix, "foo"))

	// When: the file is reindexed without "foo"
	changed, err := ix.ReindexFile(ctx, "f.ts", []store.SourceElement{
		{Type: store.ElementFunction, Name: "handler", Content: "bar baz qux"},
	})
	require.NoError(t, err)
	assert.True(t, changed)

	// Then: no stale posting survives
	assert.Empty(t, lookupIDs(ix, "foo"))
	assert.Equal(t, []string{"f.ts:handler"}, lookupIDs(ix, "qux"))
}

func TestIndexer_ReindexFile_RemovesDeletedElements(t *testing.T) {
	// Given: a file with two elements
	ix := newTestIndexer(t)
	ctx := context.Background()
	_, err := ix.ReindexFile(ctx, "two.ts", []store.SourceElement{
		{Type: store.ElementFunction, Name: "keep", Content: "retained element body"},
		{Type: store.ElementFunction, Name: "drop", Content: "doomed element body"},
	})
	require.NoError(t, err)

	// When: one element disappears on reindex
	_, err = ix.ReindexFile(ctx, "two.ts", []store.SourceElement{
		{Type: store.ElementFunction, Name: "keep", Content: "retained element body"},
	})
	require.NoError(t, err)

	// Then: the dropped element is gone from every store
	v := ix.ReadView()
	defer v.Close()
	_, ok := v.Element("two.ts:drop")
	assert.False(t, ok)
	assert.Equal(t, 1, ix.Stats().TotalEmbeddings)
	assert.Empty(t, lookupIDs(ix, "doomed"))
}

func TestIndexer_ReindexFile_EmptySetOnUnknownPathIsNoop(t *testing.T) {
	ix := newTestIndexer(t)

	changed, err := ix.ReindexFile(context.Background(), "ghost.ts", nil)

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, store.IndexStats{}, ix.Stats())
	assert.Zero(t, ix.Generation())
}

func TestIndexer_ReindexFile_EmptySetPurgesRegisteredFile(t *testing.T) {
	// Given: an indexed file
	ix := newTestIndexer(t)
	ctx := context.Background()
	_, err := ix.ReindexFile(ctx, "e.ts", []store.SourceElement{
		{Type: store.ElementFunction, Name: "f", Content: "temporary content"},
	})
	require.NoError(t, err)

	// When: it is reindexed with no elements
	changed, err := ix.ReindexFile(ctx, "e.ts", nil)
	require.NoError(t, err)
	assert.True(t, changed)

	// Then: its elements are purged but the file stays registered
	stats := ix.Stats()
	assert.Equal(t, 0, stats.TotalEmbeddings)
	assert.Equal(t, 1, stats.FilesIndexed)

	// And: repeating the empty reindex is a no-op
	changed, err = ix.ReindexFile(ctx, "e.ts", nil)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestIndexer_ReindexFile_DuplicateNamesLastWriteWins(t *testing.T) {
	ix := newTestIndexer(t)

	_, err := ix.ReindexFile(context.Background(), "dup.ts", []store.SourceElement{
		{Type: store.ElementFunction, Name: "f", Content: "first version"},
		{Type: store.ElementFunction, Name: "f", Content: "second version"},
	})
	require.NoError(t, err)

	v := ix.ReadView()
	defer v.Close()
	el, ok := v.Element("dup.ts:f")
	require.True(t, ok)
	assert.Equal(t, "second version", el.Content)
	assert.Equal(t, 1, ix.Stats().TotalEmbeddings)
}

// ============================================================================
// File Removal
// ============================================================================

func TestIndexer_RemoveFile_PurgesEverything(t *testing.T) {
	// Given: two indexed files
	ix := newTestIndexer(t)
	ctx := context.Background()
	_, err := ix.ReindexFile(ctx, "gone.ts", []store.SourceElement{
		{Type: store.ElementFunction, Name: "f", Content: "secret token handling"},
		{Type: store.ElementFunction, Name: "g", Content: "secret session handling"},
	})
	require.NoError(t, err)
	_, err = ix.ReindexFile(ctx, "kept.ts", []store.SourceElement{
		{Type: store.ElementFunction, Name: "h", Content: "unrelated worker loop"},
	})
	require.NoError(t, err)

	// When: one file is removed
	removed := ix.RemoveFile("gone.ts")
	assert.Equal(t, 2, removed)

	// Then: nothing of it remains in any store
	stats := ix.Stats()
	assert.Equal(t, 1, stats.TotalEmbeddings)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Empty(t, lookupIDs(ix, "secret"))

	v := ix.ReadView()
	defer v.Close()
	_, ok := v.Element("gone.ts:f")
	assert.False(t, ok)
}

func TestIndexer_RemoveFile_UnknownPathIsNoop(t *testing.T) {
	ix := newTestIndexer(t)
	gen := ix.Generation()

	removed := ix.RemoveFile("never/indexed.ts")

	assert.Zero(t, removed)
	assert.Equal(t, gen, ix.Generation())
}

// ============================================================================
// Stats and Generation
// ============================================================================

func TestIndexer_Stats_CountsDistinctKeywords(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()

	require.NoError(t, ix.Index(ctx, "a.ts", store.ElementFunction, "f", "alpha beta"))
	require.NoError(t, ix.Index(ctx, "b.ts", store.ElementFunction, "g", "beta gamma"))

	stats := ix.Stats()
	assert.Equal(t, 2, stats.TotalEmbeddings)
	assert.Equal(t, 3, stats.TotalKeywords)
	assert.Equal(t, 2, stats.FilesIndexed)
}

func TestIndexer_Generation_AdvancesOnlyOnChange(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()

	require.NoError(t, ix.Index(ctx, "a.ts", store.ElementFunction, "f", "body one"))
	gen := ix.Generation()
	assert.NotZero(t, gen)

	// Unchanged upsert does not advance the counter.
	require.NoError(t, ix.Index(ctx, "a.ts", store.ElementFunction, "f", "body one"))
	assert.Equal(t, gen, ix.Generation())

	// A real change does.
	require.NoError(t, ix.Index(ctx, "a.ts", store.ElementFunction, "f", "body two"))
	assert.Greater(t, ix.Generation(), gen)
}

// ============================================================================
// Content Cap
// ============================================================================

func TestIndexer_CapsOversizedElementContent(t *testing.T) {
	// Given: an indexer with a tiny element cap
	ix := newTestIndexer(t, WithMaxElementBytes(32))

	long := "leading tokens here " // 20 bytes, the tail below crosses the cap
	long += "trailing overflow keywords beyond the cap"

	require.NoError(t, ix.Index(context.Background(), "big.ts", store.ElementFunction, "f", long))

	// Then: content beyond the cap is neither stored nor searchable
	v := ix.ReadView()
	defer v.Close()
	el, ok := v.Element("big.ts:f")
	require.True(t, ok)
	assert.LessOrEqual(t, len(el.Content), 32)
	assert.Empty(t, lookupIDs(ix, "overflow"))
	assert.Equal(t, []string{"big.ts:f"}, lookupIDs(ix, "leading"))
}

// ============================================================================
// Concurrency
// ============================================================================

func TestIndexer_ConcurrentWritersAndReaders(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()

	const files = 8
	const rounds = 25

	var writers sync.WaitGroup
	for i := 0; i < files; i++ {
		writers.Add(1)
		go func(n int) {
			defer writers.Done()
			path := fmt.Sprintf("src/file%d.ts", n)
			for r := 0; r < rounds; r++ {
				_, err := ix.ReindexFile(ctx, path, []store.SourceElement{
					{Type: store.ElementFunction, Name: "f", Content: fmt.Sprintf("shared round%d body", r)},
				})
				assert.NoError(t, err)
			}
		}(i)
	}

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			v := ix.ReadView()
			_ = v.LookupKeyword("shared")
			v.Close()
			_ = ix.Stats()
		}
	}()

	writers.Wait()
	close(stop)
	<-readerDone

	stats := ix.Stats()
	assert.Equal(t, files, stats.FilesIndexed)
	assert.Equal(t, files, stats.TotalEmbeddings)
}

func TestIndexer_PerFileSwapIsAtomic(t *testing.T) {
	// Given: a file flipping between two complete element sets
	ix := newTestIndexer(t)
	ctx := context.Background()

	stateA := []store.SourceElement{
		{Type: store.ElementFunction, Name: "f", Content: "alpha marker one"},
		{Type: store.ElementFunction, Name: "g", Content: "alpha marker two"},
	}
	stateB := []store.SourceElement{
		{Type: store.ElementFunction, Name: "f", Content: "beta marker one"},
		{Type: store.ElementFunction, Name: "g", Content: "beta marker two"},
	}
	_, err := ix.ReindexFile(ctx, "flip.ts", stateA)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if i%2 == 0 {
				_, _ = ix.ReindexFile(ctx, "flip.ts", stateB)
			} else {
				_, _ = ix.ReindexFile(ctx, "flip.ts", stateA)
			}
		}
	}()

	// Then: every snapshot sees the file fully in one state, never mixed
	for {
		select {
		case <-done:
			return
		default:
		}
		v := ix.ReadView()
		alpha := len(v.LookupKeyword("alpha"))
		beta := len(v.LookupKeyword("beta"))
		v.Close()

		assert.False(t, alpha > 0 && beta > 0,
			"snapshot observed a half-updated file: alpha=%d beta=%d", alpha, beta)
	}
}
