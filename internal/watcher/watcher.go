// Package watcher watches a workspace folder for supported documents,
// enqueuing index/delete requests as files are added, changed, or
// removed. It never writes to a store directly; it hands requests to the
// index orchestrator.
package watcher

import (
	"context"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted.
	OpDelete
	// OpRename indicates a file was renamed.
	OpRename
)

// String returns a human-readable representation of the operation.
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

// FileEvent represents a file system event.
type FileEvent struct {
	// Path is the relative path to the file.
	Path string

	// OldPath is the previous path for rename events. Empty otherwise.
	OldPath string

	// Operation is the type of file system operation.
	Operation Operation

	// IsDir indicates if the event is for a directory.
	IsDir bool

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// Watcher defines the interface for file system watching. Implementations
// emit batched, debounced events.
type Watcher interface {
	// Start begins watching the given directory recursively. Runs until
	// Stop is called or ctx is cancelled.
	Start(ctx context.Context, path string) error

	// Stop stops the watcher and releases resources. Safe to call
	// multiple times.
	Stop() error

	// Events returns a channel of debounced file event batches. Closed
	// when the watcher stops.
	Events() <-chan []FileEvent

	// Errors returns a channel of non-fatal watcher errors. Closed when
	// the watcher stops.
	Errors() <-chan error
}

// Options configures watcher behavior.
type Options struct {
	// DebounceWindow is the quiet period before a batch of events is
	// emitted. Default: 500ms.
	DebounceWindow time.Duration

	// PollInterval is the scan interval for the polling fallback.
	// Default: 5s.
	PollInterval time.Duration

	// EventBufferSize is the size of the event channel buffer.
	// Default: 1000.
	EventBufferSize int
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 1000,
	}
}

// WithDefaults returns o with defaults applied for zero-valued fields.
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

// supportedExtensions is the closed set of file extensions the ingest
// pipeline accepts; events for anything else are filtered out before
// reaching the supervisor.
var supportedExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".txt": true, ".md": true, ".markdown": true,
}
