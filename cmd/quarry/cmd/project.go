package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codequarry/quarry/internal/config"
	"github.com/codequarry/quarry/internal/embed"
	"github.com/codequarry/quarry/internal/index"
	"github.com/codequarry/quarry/internal/scanner"
	"github.com/codequarry/quarry/internal/search"
)

// projectSession bundles the components a command needs to index and
// search one project. Everything lives in memory; Close releases the
// embedder.
type projectSession struct {
	Root     string
	Config   *config.Config
	Embedder *embed.HashingEmbedder
	Indexer  *index.Indexer
	Scanner  *scanner.Scanner
	Engine   *search.Engine
}

// indexSummary reports what one full indexing pass covered.
type indexSummary struct {
	// FilesScanned is how many files the scanner accepted.
	FilesScanned int
	// FilesFailed is how many of those could not be read or indexed.
	FilesFailed int
	// Elements and Keywords are the index totals after the pass.
	Elements int
	Keywords int
	Duration time.Duration
}

// resolveProject locates the project root for path and loads the
// effective configuration. A malformed or invalid config file is an
// error rather than a silent fall back to defaults.
func resolveProject(path string) (string, *config.Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("path is not a directory: %s", absPath)
	}

	root, err := config.FindProjectRoot(absPath)
	if err != nil {
		root = absPath
	}

	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

// newSession assembles the embedder, indexer, scanner, and search engine
// for a project root according to cfg.
func newSession(root string, cfg *config.Config) (*projectSession, error) {
	embedder := embed.NewHashingEmbedder(
		embed.WithDimensions(cfg.Embedding.Dimensions),
		embed.WithMaxContentBytes(cfg.Embedding.MaxContentBytes),
	)

	indexer, err := index.NewIndexer(embedder)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to create indexer: %w", err)
	}

	sc, err := scanner.New(scanner.Options{
		Root:             root,
		ExcludePatterns:  cfg.Index.Exclude,
		MaxFileSize:      cfg.Index.MaxFileSize,
		FollowSymlinks:   cfg.Index.FollowSymlinks,
		RespectGitignore: !cfg.Index.DisableGitignore,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	engine, err := search.NewEngine(indexer, embedder, search.Config{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
		Weights: search.Weights{
			Keyword:  cfg.Search.KeywordWeight,
			Semantic: cfg.Search.SemanticWeight,
		},
		CacheSize: cfg.Search.CacheSize,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to create search engine: %w", err)
	}

	return &projectSession{
		Root:     root,
		Config:   cfg,
		Embedder: embedder,
		Indexer:  indexer,
		Scanner:  sc,
		Engine:   engine,
	}, nil
}

// openProject resolves path to a project and assembles a session for it.
func openProject(path string) (*projectSession, error) {
	root, cfg, err := resolveProject(path)
	if err != nil {
		return nil, err
	}
	return newSession(root, cfg)
}

// Close releases the session's embedder. Keyword lookups on the session
// keep working afterwards; embedding queries fail.
func (s *projectSession) Close() {
	_ = s.Embedder.Close()
}

// indexAll scans the project and indexes every file the scanner accepts.
// progress, when non-nil, is called after each file completes. Files that
// fail to read or index are logged and counted, not fatal.
func (s *projectSession) indexAll(ctx context.Context, progress func(done, total int)) (indexSummary, error) {
	start := time.Now()

	var files []*scanner.FileInfo
	var scanErr error
	for result := range s.Scanner.Scan(ctx) {
		if result.Err != nil {
			scanErr = result.Err
			continue
		}
		files = append(files, result.File)
	}
	if err := ctx.Err(); err != nil {
		return indexSummary{}, err
	}
	if scanErr != nil {
		return indexSummary{}, fmt.Errorf("scan failed: %w", scanErr)
	}

	workers := s.Config.Index.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var done atomic.Int64
	var failed atomic.Int64
	var progressMu sync.Mutex

	for _, file := range files {
		g.Go(func() error {
			if err := s.indexFile(gctx, file); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				slog.Warn("failed to index file",
					slog.String("path", file.Path),
					slog.String("error", err.Error()))
			}
			n := int(done.Add(1))
			if progress != nil {
				progressMu.Lock()
				progress(n, len(files))
				progressMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return indexSummary{}, err
	}

	stats := s.Indexer.Stats()
	return indexSummary{
		FilesScanned: len(files),
		FilesFailed:  int(failed.Load()),
		Elements:     stats.TotalEmbeddings,
		Keywords:     stats.TotalKeywords,
		Duration:     time.Since(start),
	}, nil
}

// indexFile reads one scanned file and replaces its elements in the
// index. The scanner has already filtered binaries, oversized files, and
// symlinks, so whatever arrives here is indexable text.
func (s *projectSession) indexFile(ctx context.Context, file *scanner.FileInfo) error {
	content, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	elements := scanner.Extract(file.Language, content)
	if _, err := s.Indexer.ReindexFile(ctx, file.Path, elements); err != nil {
		return fmt.Errorf("failed to index file: %w", err)
	}
	return nil
}
