package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// HybridWatcher watches a directory tree with fsnotify and falls back to
// polling when fsnotify cannot initialize. Raw events pass through the
// configured ignore filter and the debouncer before reaching Events() as
// batches.
type HybridWatcher struct {
	fsWatcher   *fsnotify.Watcher
	pollWatcher *PollingWatcher
	useFsnotify bool
	debouncer   *Debouncer
	ignore      IgnoreFunc

	events         chan []FileEvent
	errors         chan error
	stopCh         chan struct{}
	root           string
	opts           Options
	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

// NewHybridWatcher creates a watcher with the given options. fsnotify is
// preferred; if the kernel watcher cannot be created the polling fallback
// takes over transparently.
func NewHybridWatcher(opts Options) (*HybridWatcher, error) {
	opts = opts.WithDefaults()

	h := &HybridWatcher{
		debouncer: NewDebouncer(opts.DebounceWindow),
		ignore:    opts.Ignore,
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
	}

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		h.fsWatcher = fsw
		h.useFsnotify = true
	} else {
		slog.Warn("fsnotify unavailable, falling back to polling",
			slog.String("error", err.Error()))
		h.pollWatcher = NewPollingWatcher(opts.PollInterval, h.shouldIgnore)
	}

	return h, nil
}

// Start watches root until ctx is cancelled or Stop is called. It blocks
// while the watcher runs.
func (h *HybridWatcher) Start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root is not a directory: %s", absRoot)
	}
	h.mu.Lock()
	h.root = absRoot
	h.mu.Unlock()

	go h.forwardBatches(ctx)

	if h.useFsnotify {
		return h.runFsnotify(ctx)
	}
	go h.forwardPollEvents(ctx)
	return h.pollWatcher.Start(ctx, absRoot)
}

// runFsnotify registers every directory recursively and converts raw
// fsnotify events.
func (h *HybridWatcher) runFsnotify(ctx context.Context) error {
	if err := h.addRecursive(h.root); err != nil {
		return fmt.Errorf("failed to register watch directories: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = h.Stop()
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case event, ok := <-h.fsWatcher.Events:
			if !ok {
				return nil
			}
			h.handleFsnotifyEvent(event)
		case err, ok := <-h.fsWatcher.Errors:
			if !ok {
				return nil
			}
			h.emitError(err)
		}
	}
}

// forwardPollEvents feeds polling events into the debouncer.
func (h *HybridWatcher) forwardPollEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case event, ok := <-h.pollWatcher.Events():
			if !ok {
				return
			}
			h.debouncer.Add(event)
		case err, ok := <-h.pollWatcher.Errors():
			if !ok {
				return
			}
			h.emitError(err)
		}
	}
}

// handleFsnotifyEvent filters one raw event and hands it to the debouncer.
func (h *HybridWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(h.root, event.Name)
	if err != nil {
		rel = event.Name
	}
	rel = filepath.ToSlash(rel)

	// The entry is gone for delete and rename, so stat only resolves the
	// kind for surviving paths.
	isDir := false
	if info, statErr := os.Stat(event.Name); statErr == nil {
		isDir = info.IsDir()
	}

	if h.shouldIgnore(rel, isDir) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			// New subtrees must be registered or their events are lost.
			_ = h.addRecursive(event.Name)
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	h.debouncer.Add(FileEvent{
		Path:      rel,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

// forwardBatches moves debounced batches to the public channel.
func (h *HybridWatcher) forwardBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case batch, ok := <-h.debouncer.Output():
			if !ok {
				return
			}
			if len(batch) == 0 {
				continue
			}
			h.emitBatch(batch)
		}
	}
}

// addRecursive registers root and every non-ignored directory below it.
func (h *HybridWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(h.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return h.fsWatcher.Add(path)
		}
		if h.shouldIgnore(rel, true) {
			return filepath.SkipDir
		}
		return h.fsWatcher.Add(path)
	})
}

// shouldIgnore applies the built-in exclusions and the configured filter.
func (h *HybridWatcher) shouldIgnore(rel string, isDir bool) bool {
	if rel == "" || rel == "." {
		return true
	}
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return true
	}
	if rel == ".quarry" || strings.HasPrefix(rel, ".quarry/") {
		return true
	}
	if h.ignore != nil {
		return h.ignore(rel, isDir)
	}
	return false
}

// emitBatch sends one batch without blocking; a full buffer drops the batch
// and counts it.
func (h *HybridWatcher) emitBatch(batch []FileEvent) {
	h.mu.RLock()
	stopped := h.stopped
	h.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case h.events <- batch:
	default:
		count := h.droppedBatches.Add(1)
		slog.Warn("event buffer full, dropping batch",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", count))
	}
}

// DroppedBatches returns how many batches overflowed the event buffer.
func (h *HybridWatcher) DroppedBatches() uint64 {
	return h.droppedBatches.Load()
}

// emitError sends an error without blocking.
func (h *HybridWatcher) emitError(err error) {
	h.mu.RLock()
	stopped := h.stopped
	h.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case h.errors <- err:
	default:
	}
}

// Stop stops the watcher and closes its channels. Safe to call more than
// once.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}
	h.stopped = true
	close(h.stopCh)

	h.debouncer.Stop()
	if h.fsWatcher != nil {
		_ = h.fsWatcher.Close()
	}
	if h.pollWatcher != nil {
		_ = h.pollWatcher.Stop()
	}

	close(h.events)
	close(h.errors)
	return nil
}

// Events returns the channel of debounced event batches. It closes when the
// watcher stops.
func (h *HybridWatcher) Events() <-chan []FileEvent {
	return h.events
}

// Errors returns the channel of non-fatal watcher errors.
func (h *HybridWatcher) Errors() <-chan error {
	return h.errors
}

// IsHealthy reports whether the watcher is still running.
func (h *HybridWatcher) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.stopped
}

// WatcherType names the active mechanism, "fsnotify" or "polling".
func (h *HybridWatcher) WatcherType() string {
	if h.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}

// RootPath returns the watched root.
func (h *HybridWatcher) RootPath() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.root
}
