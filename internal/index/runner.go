package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codequarry/quarry/internal/scanner"
)

// RunnerConfig configures a full indexing run.
type RunnerConfig struct {
	// Indexer receives the extracted elements (required).
	Indexer *Indexer

	// Scanner discovers the files to index (required).
	Scanner *scanner.Scanner

	// Workers bounds concurrent file reads and embeds. Zero or negative
	// means runtime.NumCPU().
	Workers int

	// Progress, when set, is called after each file finishes. done counts
	// processed files, total is the number the scan discovered. Called
	// from worker goroutines; implementations must be safe for concurrent
	// use.
	Progress func(done, total int, path string)
}

// RunnerResult summarizes a completed indexing run.
type RunnerResult struct {
	// Files is the number of files whose element sets are now current.
	Files int

	// Elements is the number of elements those files carry.
	Elements int

	// Skipped counts files the scan discovered but the run could not
	// read.
	Skipped int

	// Removed counts previously indexed files that vanished from disk.
	Removed int

	// Duration is the total run time.
	Duration time.Duration
}

// Runner executes one full indexing pass over a project. Repeat runs are
// cheap: the content hash gate skips files that have not changed, and files
// that vanished since the last run are removed so the index mirrors the
// tree.
type Runner struct {
	indexer  *Indexer
	scan     *scanner.Scanner
	workers  int
	progress func(done, total int, path string)
}

// NewRunner validates cfg and creates a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Indexer == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	if cfg.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Runner{
		indexer:  cfg.Indexer,
		scan:     cfg.Scanner,
		workers:  workers,
		progress: cfg.Progress,
	}, nil
}

// Run scans the project, extracts elements from every discovered file, and
// reindexes them. Unreadable files are logged and skipped; indexing errors
// abort the run because they signal an embedder or shutdown problem rather
// than a bad file.
func (r *Runner) Run(ctx context.Context) (*RunnerResult, error) {
	start := time.Now()

	slog.Info("index run started", slog.String("root", r.scan.Root()))

	files, err := r.scanFiles(ctx)
	if err != nil {
		return nil, err
	}

	removed := r.removeVanished(files)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	var processed, indexed, elements, readSkips atomic.Int64
	total := len(files)

	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer func() {
				if r.progress != nil {
					r.progress(int(processed.Add(1)), total, file.Path)
				}
			}()

			content, err := os.ReadFile(file.AbsPath)
			if err != nil {
				readSkips.Add(1)
				slog.Warn("failed to read file, skipping",
					slog.String("path", file.Path),
					slog.String("error", err.Error()))
				return nil
			}

			elems := scanner.Extract(file.Language, content)
			if _, err := r.indexer.ReindexFile(gctx, file.Path, elems); err != nil {
				return fmt.Errorf("failed to index %s: %w", file.Path, err)
			}

			indexed.Add(1)
			elements.Add(int64(len(elems)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &RunnerResult{
		Files:    int(indexed.Load()),
		Elements: int(elements.Load()),
		Skipped:  int(readSkips.Load()),
		Removed:  removed,
		Duration: time.Since(start),
	}

	slog.Info("index run complete",
		slog.Int("files", result.Files),
		slog.Int("elements", result.Elements),
		slog.Int("skipped", result.Skipped),
		slog.Int("removed", result.Removed),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// scanFiles drains one scan. Traversal failures abort the run; nothing
// downstream should act on a partial file list.
func (r *Runner) scanFiles(ctx context.Context) ([]*scanner.FileInfo, error) {
	var files []*scanner.FileInfo
	var scanErr error

	for result := range r.scan.Scan(ctx) {
		if result.Err != nil {
			scanErr = result.Err
			continue
		}
		files = append(files, result.File)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, fmt.Errorf("scan failed: %w", scanErr)
	}

	slog.Debug("scan complete", slog.Int("files", len(files)))
	return files, nil
}

// removeVanished drops index entries whose files the scan no longer sees
// and returns how many files were purged.
func (r *Runner) removeVanished(files []*scanner.FileInfo) int {
	seen := make(map[string]bool, len(files))
	for _, file := range files {
		seen[file.Path] = true
	}

	removed := 0
	for _, path := range r.indexer.Paths() {
		if !seen[path] {
			r.indexer.RemoveFile(path)
			removed++
		}
	}
	return removed
}
