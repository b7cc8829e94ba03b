package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codequarry/quarry/internal/search"
)

// ============================================================
// Project resolution
// ============================================================

func TestResolveProject_FindsRootFromSubdirectory(t *testing.T) {
	isolateHome(t)
	root := writeTestProject(t)

	found, cfg, err := resolveProject(filepath.Join(root, "auth"))

	require.NoError(t, err)
	assert.Equal(t, root, found, "go.mod should mark the project root")
	require.NotNil(t, cfg)
}

func TestResolveProject_PathMissing(t *testing.T) {
	isolateHome(t)

	_, _, err := resolveProject(filepath.Join(t.TempDir(), "nope"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to access path")
}

func TestResolveProject_PathIsFile(t *testing.T) {
	isolateHome(t)
	root := writeTestProject(t)

	_, _, err := resolveProject(filepath.Join(root, "go.mod"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestResolveProject_MalformedConfigFails(t *testing.T) {
	// A broken config file is an error, not a silent fall back to defaults.
	isolateHome(t)
	root := writeTestProject(t)
	writeFile(t, root, ".quarry.yaml", "search: [broken\n")

	_, _, err := resolveProject(root)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

// ============================================================
// Session indexing
// ============================================================

func TestIndexAll_IndexesEveryFile(t *testing.T) {
	isolateHome(t)
	root := writeTestProject(t)

	session, err := openProject(root)
	require.NoError(t, err)
	defer session.Close()

	summary, err := session.indexAll(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 4, summary.FilesScanned, "go.mod, README.md, and two .go files")
	assert.Equal(t, 0, summary.FilesFailed)
	assert.Equal(t, 8, summary.Elements)
	assert.Positive(t, summary.Keywords)
	assert.Positive(t, summary.Duration)

	stats := session.Indexer.Stats()
	assert.Equal(t, 4, stats.FilesIndexed)
}

func TestIndexAll_ReportsProgress(t *testing.T) {
	isolateHome(t)
	root := writeTestProject(t)

	session, err := openProject(root)
	require.NoError(t, err)
	defer session.Close()

	type step struct{ done, total int }
	var steps []step
	_, err = session.indexAll(context.Background(), func(done, total int) {
		steps = append(steps, step{done, total})
	})

	require.NoError(t, err)
	require.Len(t, steps, 4, "One progress call per file")
	for _, s := range steps {
		assert.Equal(t, 4, s.total)
	}
	assert.Equal(t, step{4, 4}, steps[len(steps)-1])
}

func TestIndexAll_CancelledContext(t *testing.T) {
	isolateHome(t)
	root := writeTestProject(t)

	session, err := openProject(root)
	require.NoError(t, err)
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = session.indexAll(ctx, nil)

	require.ErrorIs(t, err, context.Canceled)
}

func TestProjectSession_SearchAfterIndex(t *testing.T) {
	// Given: a freshly indexed project
	isolateHome(t)
	root := writeTestProject(t)

	session, err := openProject(root)
	require.NoError(t, err)
	defer session.Close()

	_, err = session.indexAll(context.Background(), nil)
	require.NoError(t, err)

	// When: searching for a term unique to one file
	results, err := session.Engine.SearchByKeyword(context.Background(), "password", 5)

	// Then: every hit comes from that file
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "auth/login.go", r.FilePath)
	}

	// And: hybrid search ranks the matching function first
	hybrid, err := session.Engine.Search(context.Background(), "find user by email address", search.Options{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, hybrid)
	assert.Equal(t, "store/user.go", hybrid[0].FilePath)
}
