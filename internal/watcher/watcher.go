package watcher

import (
	"time"
)

// Operation classifies a file system change.
type Operation int

const (
	// OpCreate indicates a new file or directory appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing file changed.
	OpModify
	// OpDelete indicates a file or directory disappeared.
	OpDelete
	// OpRename indicates a file or directory was renamed away. The watcher
	// reports the old path; the new path arrives as a separate OpCreate.
	OpRename
)

// String returns the operation name for logs.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed file system change.
type FileEvent struct {
	// Path is relative to the watched root, slash-separated.
	Path string

	// Operation is the change type after debouncing.
	Operation Operation

	// IsDir marks directory events. Delete events report the last known
	// kind, since the entry no longer exists to stat.
	IsDir bool

	// Timestamp is when the event was observed.
	Timestamp time.Time
}

// IgnoreFunc filters paths out of watching. It receives a root-relative
// slash path; returning true drops the event (and for directories, the
// subtree).
type IgnoreFunc func(relPath string, isDir bool) bool

// Options configures a watcher.
type Options struct {
	// DebounceWindow is the quiet period before coalesced events flush.
	// Default: 200ms.
	DebounceWindow time.Duration

	// PollInterval is the scan interval for the polling fallback.
	// Default: 5s.
	PollInterval time.Duration

	// EventBufferSize is the batch channel capacity. Default: 1000.
	EventBufferSize int

	// Ignore filters events. Nil keeps everything except the built-in
	// exclusions (.git, .quarry).
	Ignore IgnoreFunc
}

// DefaultOptions returns the standard watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 1000,
	}
}

// WithDefaults fills zero values with defaults.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
