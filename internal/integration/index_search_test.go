// Package integration exercises whole pipelines across package
// boundaries: scan, extract, index, search, and live updates working
// against a real directory tree.
package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codequarry/quarry/internal/config"
	"github.com/codequarry/quarry/internal/embed"
	"github.com/codequarry/quarry/internal/index"
	"github.com/codequarry/quarry/internal/scanner"
	"github.com/codequarry/quarry/internal/search"
	"github.com/codequarry/quarry/pkg/codesearch"
)

// writeFile creates a file under root, making parent directories as needed.
func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

// writeWebProject lays down a small Go project with an HTTP handler in
// main.go and formatting helpers in util.go.
func writeWebProject(t *testing.T, root string) {
	t.Helper()

	writeFile(t, root, "main.go", `package main

import "net/http"

// handleRequest answers every HTTP request with a greeting.
func handleRequest(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Hello, World!"))
}

func main() {
	http.HandleFunc("/", handleRequest)
	http.ListenAndServe(":8080", nil)
}
`)
	writeFile(t, root, "util.go", `package main

// formatMessage prefixes a message for log output.
func formatMessage(msg string) string {
	return "[APP] " + msg
}

// validateInput rejects empty input.
func validateInput(input string) bool {
	return len(input) > 0
}
`)
}

// buildIndex runs the full scan-extract-index pipeline over root and
// returns a ready search engine with its indexer and scanner.
func buildIndex(t *testing.T, root string) (*search.Engine, *index.Indexer, *scanner.Scanner) {
	t.Helper()

	embedder := embed.NewHashingEmbedder()
	t.Cleanup(func() { _ = embedder.Close() })

	ix, err := index.NewIndexer(embedder)
	require.NoError(t, err)

	sc, err := scanner.New(scanner.Options{Root: root, RespectGitignore: true})
	require.NoError(t, err)

	indexTree(t, sc, ix)

	eng, err := search.NewEngine(ix, embedder, search.Config{})
	require.NoError(t, err)
	return eng, ix, sc
}

// indexTree scans root and indexes every discovered file.
func indexTree(t *testing.T, sc *scanner.Scanner, ix *index.Indexer) {
	t.Helper()
	ctx := context.Background()

	for result := range sc.Scan(ctx) {
		require.NoError(t, result.Err)
		content, err := os.ReadFile(result.File.AbsPath)
		require.NoError(t, err)

		elements := scanner.Extract(result.File.Language, content)
		_, err = ix.ReindexFile(ctx, result.File.Path, elements)
		require.NoError(t, err)
	}
}

func TestIntegration_ScanIndexSearch_FindsHandler(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	// Given: a scanned and indexed project
	root := t.TempDir()
	writeWebProject(t, root)
	eng, ix, _ := buildIndex(t, root)

	stats := ix.Stats()
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Greater(t, stats.TotalEmbeddings, 2)

	// When: asking for the handler in natural language
	results, err := eng.Search(context.Background(), "http request handler", search.Options{Limit: 10})

	// Then: the handler's file ranks among the hits
	require.NoError(t, err)
	require.NotEmpty(t, results)
	files := make([]string, 0, len(results))
	for _, r := range results {
		files = append(files, r.FilePath)
	}
	assert.Contains(t, files, "main.go")
}

func TestIntegration_RemoveFile_ExcludesItsElements(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	root := t.TempDir()
	writeWebProject(t, root)
	eng, ix, _ := buildIndex(t, root)
	ctx := context.Background()

	// The helper is findable before removal.
	results, err := eng.SearchByKeyword(ctx, "formatMessage", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// When: its file is removed from the index
	removed := ix.RemoveFile("util.go")
	assert.Greater(t, removed, 0)

	// Then: no result references it on any retrieval path
	results, err = eng.SearchByKeyword(ctx, "formatMessage", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	hybrid, err := eng.Search(ctx, "format a log message", search.Options{Limit: 10})
	require.NoError(t, err)
	for _, r := range hybrid {
		assert.NotEqual(t, "util.go", r.FilePath)
	}
}

func TestIntegration_ReindexChangedFile_RefreshesResults(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	root := t.TempDir()
	writeWebProject(t, root)
	eng, ix, sc := buildIndex(t, root)
	ctx := context.Background()

	// When: util.go is rewritten and reindexed through the same pipeline
	writeFile(t, root, "util.go", `package main

// sanitizePayload strips control characters from a payload.
func sanitizePayload(payload string) string {
	return payload
}
`)
	indexTree(t, sc, ix)

	// Then: the old identifier is gone and the new one is findable
	stale, err := eng.SearchByKeyword(ctx, "formatMessage", 5)
	require.NoError(t, err)
	assert.Empty(t, stale)

	fresh, err := eng.SearchByKeyword(ctx, "sanitizePayload", 5)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "util.go", fresh[0].FilePath)
}

func TestIntegration_EmptyProject_ReturnsNoResults(t *testing.T) {
	eng, _, _ := buildIndex(t, t.TempDir())

	results, err := eng.Search(context.Background(), "anything at all", search.Options{Limit: 10})

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIntegration_GitignoredFilesStayOutOfIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	// Given: a project whose .gitignore hides a generated directory
	root := t.TempDir()
	writeWebProject(t, root)
	writeFile(t, root, ".gitignore", "generated/\n")
	writeFile(t, root, "generated/schema.go", `package generated

func DecodeWireSchema(payload []byte) error {
	return nil
}
`)

	eng, ix, _ := buildIndex(t, root)

	// Then: the hidden file contributed nothing
	results, err := eng.SearchByKeyword(context.Background(), "DecodeWireSchema", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	// main.go, util.go, and .gitignore itself are indexed.
	assert.Equal(t, 3, ix.Stats().FilesIndexed)
}

func TestIntegration_ConcurrentSearchesAndReindexes_NoRace(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	root := t.TempDir()
	writeWebProject(t, root)
	eng, ix, sc := buildIndex(t, root)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := eng.Search(ctx, fmt.Sprintf("request handler %d", n), search.Options{Limit: 5})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 10; j++ {
			for result := range sc.Scan(ctx) {
				if !assert.NoError(t, result.Err) {
					return
				}
				content, err := os.ReadFile(result.File.AbsPath)
				if !assert.NoError(t, err) {
					return
				}
				_, err = ix.ReindexFile(ctx, result.File.Path, scanner.Extract(result.File.Language, content))
				assert.NoError(t, err)
			}
		}
	}()
	wg.Wait()

	// Searches during reindexing never observed a broken index.
	assert.Equal(t, 2, ix.Stats().FilesIndexed)
}

// ============================================================================
// Public facade
// ============================================================================

func TestIntegration_FacadeServesScannedProject(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	// Given: a host application feeding scanner output into the facade
	root := t.TempDir()
	writeWebProject(t, root)

	cs, err := codesearch.New(codesearch.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	sc, err := scanner.New(scanner.Options{Root: root})
	require.NoError(t, err)

	ctx := context.Background()
	for result := range sc.Scan(ctx) {
		require.NoError(t, result.Err)
		content, err := os.ReadFile(result.File.AbsPath)
		require.NoError(t, err)

		extracted := scanner.Extract(result.File.Language, content)
		elements := make([]codesearch.SourceElement, len(extracted))
		for i, el := range extracted {
			elements[i] = codesearch.SourceElement{
				Type:    codesearch.ElementType(el.Type),
				Name:    el.Name,
				Content: el.Content,
			}
		}
		_, err = cs.ReindexFile(ctx, result.File.Path, elements)
		require.NoError(t, err)
	}

	// Then: the facade answers hybrid queries over the scanned code
	results, err := cs.Search(ctx, "validate user input", codesearch.Options{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	stats := cs.Stats()
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Greater(t, stats.Keywords, 0)
}

// ============================================================================
// Configuration
// ============================================================================

// isolateUserConfig points HOME and XDG_CONFIG_HOME at a scratch dir so
// a developer's real user config cannot leak into assertions.
func isolateUserConfig(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
}

func TestIntegration_ConfigDefaults_DriveTheEngine(t *testing.T) {
	// Given: a project without any config file
	isolateUserConfig(t)
	tmpDir := t.TempDir()

	cfg, err := config.Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.Search.KeywordWeight)
	assert.Equal(t, 0.6, cfg.Search.SemanticWeight)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.False(t, cfg.Index.DisableGitignore)
}

func TestIntegration_ProjectConfig_OverridesDefaults(t *testing.T) {
	// Given: a project config tuning search and scan behavior
	isolateUserConfig(t)
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, ".quarry.yaml", `
version: "1"
search:
  default_limit: 9
  keyword_weight: 0.7
  semantic_weight: 0.3
index:
  exclude:
    - "testdata/**"
`)

	cfg, err := config.Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Search.DefaultLimit)
	assert.Equal(t, 0.7, cfg.Search.KeywordWeight)
	assert.Equal(t, 0.3, cfg.Search.SemanticWeight)
	assert.Equal(t, []string{"testdata/**"}, cfg.Index.Exclude)
	// Unset fields keep their defaults.
	assert.Equal(t, 100, cfg.Search.MaxLimit)
}
