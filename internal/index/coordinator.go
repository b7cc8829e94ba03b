package index

import (
	"bytes"
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

	"github.com/codequarry/quarry/internal/scanner"
	"github.com/codequarry/quarry/internal/watcher"
)

// CoordinatorState describes what the coordinator is doing right now.
type CoordinatorState string

const (
	// StateIdle means no batch or reconciliation is in flight.
	StateIdle CoordinatorState = "idle"
	// StateApplying means a watcher batch is being applied.
	StateApplying CoordinatorState = "applying"
	// StateReconciling means a full filesystem pass is running.
	StateReconciling CoordinatorState = "reconciling"
)

// CoordinatorStatus is a point-in-time snapshot of coordinator activity.
type CoordinatorStatus struct {
	State         CoordinatorState
	EventsApplied uint64
	EventsFailed  uint64
	ReconcileRuns uint64
	LastReconcile time.Time
}

// CoordinatorConfig wires a Coordinator's collaborators.
type CoordinatorConfig struct {
	// Indexer receives the element updates (required).
	Indexer *Indexer

	// Scanner supplies the project root, the exclusion rules, and the
	// reconciliation walk (required).
	Scanner *scanner.Scanner

	// MaxFileSize caps reads on the event path, in bytes. Zero means
	// scanner.DefaultMaxFileSize, negative disables the cap.
	MaxFileSize int64

	// Workers bounds reconciliation parallelism. Zero or negative means
	// runtime.NumCPU().
	Workers int
}

// Coordinator keeps the index aligned with the filesystem. It applies
// debounced watcher batches as they arrive and periodically reconciles
// against a full scan to catch anything the event stream missed. Batches
// and reconciliations serialize on one lock; Status stays readable
// throughout.
type Coordinator struct {
	indexer     *Indexer
	scan        *scanner.Scanner
	root        string
	maxFileSize int64
	workers     int

	mu sync.Mutex

	statusMu sync.Mutex
	status   CoordinatorStatus
}

// NewCoordinator validates cfg and creates a Coordinator.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Indexer == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	if cfg.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}

	maxFileSize := cfg.MaxFileSize
	if maxFileSize == 0 {
		maxFileSize = scanner.DefaultMaxFileSize
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Coordinator{
		indexer:     cfg.Indexer,
		scan:        cfg.Scanner,
		root:        cfg.Scanner.Root(),
		maxFileSize: maxFileSize,
		workers:     workers,
		status:      CoordinatorStatus{State: StateIdle},
	}, nil
}

// Run consumes watcher batches until the channel closes or ctx is
// cancelled, reconciling every reconcileInterval. A non-positive interval
// disables periodic reconciliation.
func (c *Coordinator) Run(ctx context.Context, batches <-chan []watcher.FileEvent, reconcileInterval time.Duration) error {
	var tick <-chan time.Time
	if reconcileInterval > 0 {
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			if err := c.HandleEvents(ctx, batch); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("event batch failed",
					slog.String("error", err.Error()))
			}
		case <-tick:
			if err := c.Reconcile(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("periodic reconciliation failed",
					slog.String("error", err.Error()))
			}
		}
	}
}

// HandleEvents applies one debounced batch. Events are processed in order;
// a failing event is logged and skipped so one bad path cannot wedge the
// stream. Returns early only when ctx is cancelled.
func (c *Coordinator) HandleEvents(ctx context.Context, events []watcher.FileEvent) error {
	if len(events) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.setState(StateApplying)
	defer c.setState(StateIdle)

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.handleEvent(ctx, event); err != nil {
			c.noteEvent(false)
			slog.Warn("failed to apply file event",
				slog.String("path", event.Path),
				slog.String("operation", event.Operation.String()),
				slog.String("error", err.Error()))
			continue
		}
		c.noteEvent(true)
	}

	slog.Debug("applied event batch", slog.Int("events", len(events)))
	return nil
}

// handleEvent routes one event. Directory creations are not walked here;
// moved-in subtrees are picked up by the next reconciliation.
func (c *Coordinator) handleEvent(ctx context.Context, event watcher.FileEvent) error {
	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		if event.IsDir {
			return nil
		}
		_, err := c.indexPath(ctx, event.Path)
		return err
	case watcher.OpDelete, watcher.OpRename:
		c.removePath(event.Path)
		return nil
	default:
		return nil
	}
}

// Reconcile realigns the index with the filesystem: entries whose files
// vanished or became excluded are dropped, and everything the scanner finds
// is reindexed. Content hashing keeps unchanged files cheap. The walk must
// complete for removals to run; a partial scan never purges entries.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setState(StateReconciling)
	defer c.setState(StateIdle)

	start := time.Now()

	var files []*scanner.FileInfo
	var scanErr error
	for result := range c.scan.Scan(ctx) {
		if result.Err != nil {
			scanErr = result.Err
			continue
		}
		files = append(files, result.File)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if scanErr != nil {
		return fmt.Errorf("scan failed: %w", scanErr)
	}

	seen := make(map[string]bool, len(files))
	for _, file := range files {
		seen[file.Path] = true
	}

	removed := 0
	for _, path := range c.indexer.Paths() {
		if !seen[path] {
			c.indexer.RemoveFile(path)
			removed++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	var changed atomic.Int64
	for _, file := range files {
		g.Go(func() error {
			fileChanged, err := c.indexPath(gctx, file.Path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("failed to reindex file during reconciliation",
					slog.String("path", file.Path),
					slog.String("error", err.Error()))
				return nil
			}
			if fileChanged {
				changed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.statusMu.Lock()
	c.status.ReconcileRuns++
	c.status.LastReconcile = time.Now()
	c.statusMu.Unlock()

	slog.Info("reconciliation complete",
		slog.Int("files", len(files)),
		slog.Int("changed", int(changed.Load())),
		slog.Int("removed", removed),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// Status returns a snapshot of coordinator activity. Safe to call while a
// batch or reconciliation is in flight.
func (c *Coordinator) Status() CoordinatorStatus {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

// indexPath reads relPath and replaces its element set in the index. Paths
// the scanner would not index are removed rather than skipped: a file that
// grew past the size cap, turned binary, or was replaced by a symlink or
// directory no longer belongs in the index. Reports whether the index
// changed.
func (c *Coordinator) indexPath(ctx context.Context, relPath string) (bool, error) {
	if c.scan.ShouldIgnore(relPath, false) {
		return false, nil
	}

	absPath := filepath.Join(c.root, filepath.FromSlash(relPath))
	info, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Gone between the event and now; drop whatever we had.
			return c.indexer.RemoveFile(relPath) > 0, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 || info.IsDir() {
		return c.indexer.RemoveFile(relPath) > 0, nil
	}
	if c.maxFileSize > 0 && info.Size() > c.maxFileSize {
		slog.Debug("dropping oversized file",
			slog.String("path", relPath),
			slog.Int64("size", info.Size()))
		return c.indexer.RemoveFile(relPath) > 0, nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}
	if isBinaryContent(content) {
		return c.indexer.RemoveFile(relPath) > 0, nil
	}

	elements := scanner.Extract(scanner.DetectLanguage(relPath), content)
	changed, err := c.indexer.ReindexFile(ctx, relPath, elements)
	if err != nil {
		return false, fmt.Errorf("failed to reindex file: %w", err)
	}
	return changed, nil
}

// removePath drops relPath from the index. Directory paths fan out to every
// indexed file underneath.
func (c *Coordinator) removePath(relPath string) int {
	removed := 0
	for _, p := range c.indexer.PathsUnder(relPath) {
		removed += c.indexer.RemoveFile(p)
	}
	if removed > 0 {
		slog.Debug("removed path from index",
			slog.String("path", relPath),
			slog.Int("elements", removed))
	}
	return removed
}

func (c *Coordinator) setState(state CoordinatorState) {
	c.statusMu.Lock()
	c.status.State = state
	c.statusMu.Unlock()
}

func (c *Coordinator) noteEvent(applied bool) {
	c.statusMu.Lock()
	if applied {
		c.status.EventsApplied++
	} else {
		c.status.EventsFailed++
	}
	c.statusMu.Unlock()
}

// isBinaryContent sniffs for a null byte in the leading bytes of content.
// The window matches the scanner's so the scan and event paths classify
// files identically.
func isBinaryContent(content []byte) bool {
	n := min(len(content), 8*1024)
	return bytes.IndexByte(content[:n], 0) >= 0
}
