// Package watcher provides debounced file system watching for live index
// updates.
//
// Watching is hybrid: fsnotify delivers kernel events where available, and a
// polling walker takes over where it does not (network mounts, some
// containers). Either way, raw events pass through an ignore filter and a
// per-path debouncer, and consumers receive coalesced batches:
//
//	w, err := watcher.NewHybridWatcher(watcher.Options{Ignore: ignoreFn})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go w.Start(ctx, root)
//
//	for batch := range w.Events() {
//	    for _, event := range batch {
//	        // reindex or remove event.Path
//	    }
//	}
package watcher
