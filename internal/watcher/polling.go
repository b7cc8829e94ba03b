package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects changes by periodically walking the tree and
// diffing modTime/size snapshots. It is the fallback for environments where
// fsnotify cannot deliver events (network mounts, some containers).
type PollingWatcher struct {
	interval time.Duration
	ignore   IgnoreFunc

	mu       sync.Mutex
	snapshot map[string]fileSnapshot
	events   chan FileEvent
	errors   chan error
	stopCh   chan struct{}
	stopped  bool
	root     string
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a polling watcher. ignore may be nil.
func NewPollingWatcher(interval time.Duration, ignore IgnoreFunc) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		ignore:   ignore,
		snapshot: make(map[string]fileSnapshot),
		events:   make(chan FileEvent, 100),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}
}

// Start polls root until ctx is cancelled or Stop is called. The first walk
// establishes the baseline and emits nothing.
func (p *PollingWatcher) Start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve root: %w", err)
	}
	p.root = absRoot

	p.mu.Lock()
	p.snapshot = p.walk()
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.diff()
		}
	}
}

// Stop stops the watcher and closes its channels. Safe to call more than
// once.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of detected changes.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of walk errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}

// walk captures the current state of every watched entry.
func (p *PollingWatcher) walk() map[string]fileSnapshot {
	state := make(map[string]fileSnapshot)

	_ = filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(p.root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if p.ignore != nil && p.ignore(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[rel] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
			isDir:   d.IsDir(),
		}
		return nil
	})

	return state
}

// diff walks again and emits create/modify/delete events against the stored
// snapshot.
func (p *PollingWatcher) diff() {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.walk()

	for rel, snap := range current {
		prev, existed := p.snapshot[rel]
		switch {
		case !existed:
			p.emit(FileEvent{Path: rel, Operation: OpCreate, IsDir: snap.isDir, Timestamp: time.Now()})
		case prev.modTime != snap.modTime || prev.size != snap.size:
			p.emit(FileEvent{Path: rel, Operation: OpModify, IsDir: snap.isDir, Timestamp: time.Now()})
		}
	}

	for rel, snap := range p.snapshot {
		if _, exists := current[rel]; !exists {
			p.emit(FileEvent{Path: rel, Operation: OpDelete, IsDir: snap.isDir, Timestamp: time.Now()})
		}
	}

	p.snapshot = current
}

// emit sends one event without blocking. Must hold mu.
func (p *PollingWatcher) emit(event FileEvent) {
	if p.stopped {
		return
	}
	select {
	case p.events <- event:
	default:
		slog.Warn("polling watcher buffer full, dropping event",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()))
	}
}
