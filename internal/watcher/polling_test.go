package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startPolling runs a polling watcher over dir and waits for the initial
// snapshot so the first diff sees only the test's own changes.
func startPolling(t *testing.T, dir string, ignore IgnoreFunc) *PollingWatcher {
	t.Helper()

	w := NewPollingWatcher(50*time.Millisecond, ignore)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Start(ctx, dir) }()
	t.Cleanup(func() { _ = w.Stop() })

	time.Sleep(100 * time.Millisecond)
	return w
}

func awaitPollEvent(t *testing.T, w *PollingWatcher) FileEvent {
	t.Helper()
	select {
	case event := <-w.Events():
		return event
	case err := <-w.Errors():
		t.Fatalf("unexpected watcher error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for poll event")
	}
	return FileEvent{}
}

func TestPollingWatcher_DiffDetectsChanges(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, dir string)
		change func(t *testing.T, dir string)
		want   Operation
		path   string
	}{
		{
			name:   "new file reports create",
			setup:  func(t *testing.T, dir string) {},
			change: func(t *testing.T, dir string) { writePollFile(t, dir, "new.go", "package main") },
			want:   OpCreate,
			path:   "new.go",
		},
		{
			name:  "rewritten file reports modify",
			setup: func(t *testing.T, dir string) { writePollFile(t, dir, "existing.go", "package main") },
			change: func(t *testing.T, dir string) {
				// A second write inside the same mtime granularity would be
				// missed, so give the clock a tick first.
				time.Sleep(50 * time.Millisecond)
				writePollFile(t, dir, "existing.go", "package main\n\nfunc main() {}\n")
			},
			want: OpModify,
			path: "existing.go",
		},
		{
			name:  "removed file reports delete",
			setup: func(t *testing.T, dir string) { writePollFile(t, dir, "doomed.go", "package main") },
			change: func(t *testing.T, dir string) {
				require.NoError(t, os.Remove(filepath.Join(dir, "doomed.go")))
			},
			want: OpDelete,
			path: "doomed.go",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)
			w := startPolling(t, dir, nil)

			tt.change(t, dir)

			event := awaitPollEvent(t, w)
			assert.Equal(t, tt.want, event.Operation)
			assert.Equal(t, tt.path, event.Path)
		})
	}
}

func TestPollingWatcher_NewSubtree_ReportsContents(t *testing.T) {
	dir := t.TempDir()
	w := startPolling(t, dir, nil)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subdir"), 0o755))
	writePollFile(t, dir, filepath.Join("subdir", "file.go"), "package subdir")

	events := collectEvents(w.Events(), 2, time.Second)
	require.NotEmpty(t, events)

	var sawFile bool
	for _, e := range events {
		if e.Operation == OpCreate && !e.IsDir && e.Path == "subdir/file.go" {
			sawFile = true
		}
	}
	assert.True(t, sawFile, "expected a create event for subdir/file.go, got %v", events)
}

func TestPollingWatcher_IgnoreFilterSkipsPaths(t *testing.T) {
	// Given: a watcher that ignores the dist directory
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dist"), 0o755))

	ignore := func(rel string, isDir bool) bool {
		return rel == "dist" || filepath.Dir(rel) == "dist"
	}
	w := startPolling(t, dir, ignore)

	// When: files land in both an ignored and a watched location
	writePollFile(t, dir, filepath.Join("dist", "bundle.js"), "x")
	writePollFile(t, dir, "kept.go", "package kept")

	// Then: only the watched file produces an event
	events := collectEvents(w.Events(), 2, 500*time.Millisecond)
	require.Len(t, events, 1)
	assert.Equal(t, "kept.go", events[0].Path)
}

func TestPollingWatcher_Stop_ClosesEvents(t *testing.T) {
	dir := t.TempDir()
	w := startPolling(t, dir, nil)

	require.NoError(t, w.Stop())

	select {
	case _, open := <-w.Events():
		assert.False(t, open, "events channel should close on Stop")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for events channel to close")
	}
}

func TestPollingWatcher_ContextCancel_ReturnsFromStart(t *testing.T) {
	dir := t.TempDir()
	w := NewPollingWatcher(50*time.Millisecond, nil)
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Start(ctx, dir)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancel")
	}
}

func writePollFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, rel), []byte(content), 0o644))
}

// collectEvents drains up to n events or stops at the timeout.
func collectEvents(ch <-chan FileEvent, n int, timeout time.Duration) []FileEvent {
	var events []FileEvent
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for len(events) < n {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-timer.C:
			return events
		}
	}
	return events
}
