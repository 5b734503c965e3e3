package watcher

import (
	"context"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/docrag/engine/internal/index"
	"github.com/docrag/engine/internal/store"
)

// State is the supervisor's three-state lifecycle for one watched folder.
type State int

const (
	// StateIdle means no folder is set; nothing is watched.
	StateIdle State = iota
	// StateWatching means a folder is set and subscribed to change events.
	StateWatching
	// StateDisabled means the folder setting was toggled off; the
	// subscription is torn down but the existing index is preserved.
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

const stripeCount = 32

// Supervisor runs the three-state workspace-watcher machine described in
// the ingest spec: on folder set it enumerates children and enqueues
// ingest for anything not yet indexed, then subscribes to live changes.
// It never writes to a store directly; every mutation is dispatched
// through the index orchestrator. Events for the same path are
// serialized via a striped mutex so a rapid modify-then-delete pair
// can't race.
type Supervisor struct {
	orchestrator *index.Orchestrator
	metadata     store.MetadataStore
	scope        store.Scope
	opts         Options
	logger       *slog.Logger

	mu      sync.Mutex
	state   State
	watcher Watcher
	cancel  context.CancelFunc

	stripes [stripeCount]sync.Mutex
}

// NewSupervisor constructs a Supervisor bound to one scope's index
// orchestrator and the metadata store it resolves delete events against.
func NewSupervisor(orchestrator *index.Orchestrator, metadata store.MetadataStore, scope store.Scope, opts Options, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		orchestrator: orchestrator,
		metadata:     metadata,
		scope:        scope,
		opts:         opts.WithDefaults(),
		logger:       logger,
		state:        StateIdle,
	}
}

// State reports the supervisor's current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetFolder transitions Idle/Disabled → Watching: it enumerates existing
// files under root (enqueuing ingest for anything not yet indexed) and
// subscribes to live filesystem events.
func (s *Supervisor) SetFolder(ctx context.Context, root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		_ = s.watcher.Stop()
		if s.cancel != nil {
			s.cancel()
		}
	}

	hw, err := NewHybridWatcher(s.opts)
	if err != nil {
		return err
	}
	s.watcher = hw

	watchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.enumerateExisting(watchCtx, root)

	go func() {
		if err := hw.Start(watchCtx, root); err != nil && watchCtx.Err() == nil {
			s.logger.Warn("watcher stopped with error", slog.String("error", err.Error()))
		}
	}()
	go s.consumeEvents(watchCtx, hw)

	s.state = StateWatching
	return nil
}

// Disable transitions Watching → Disabled: the subscription is torn
// down but the existing index is left untouched.
func (s *Supervisor) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		_ = s.watcher.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.watcher = nil
	s.state = StateDisabled
}

// enumerateExisting walks root and enqueues an ingest for every
// supported file. IndexDocument's own checksum dedup makes an explicit
// isDocumentIndexed pre-check unnecessary: extraction, the expensive
// step, only runs after that dedup check passes.
func (s *Supervisor) enumerateExisting(ctx context.Context, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		s.enqueueIndex(ctx, path)
		return nil
	})
}

func (s *Supervisor) consumeEvents(ctx context.Context, w Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			for _, ev := range batch {
				s.handleEvent(ctx, w, ev)
			}
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			s.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (s *Supervisor) handleEvent(ctx context.Context, w Watcher, ev FileEvent) {
	hw, ok := w.(*HybridWatcher)
	absPath := ev.Path
	if ok && hw.RootPath() != "" {
		absPath = filepath.Join(hw.RootPath(), ev.Path)
	}

	switch ev.Operation {
	case OpCreate, OpModify, OpRename:
		s.enqueueIndex(ctx, absPath)
	case OpDelete:
		s.enqueueDelete(ctx, absPath)
	}
}

// enqueueIndex dispatches an ingest request for path, serialized against
// any other event for the same path via the striped mutex.
func (s *Supervisor) enqueueIndex(ctx context.Context, path string) {
	lock := s.stripeFor(path)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.orchestrator.IndexDocument(ctx, index.Request{URI: path, Scope: s.scope}); err != nil {
		s.logger.Warn("watcher-driven index failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// enqueueDelete resolves path to a docId via the metadata store and
// dispatches a delete. A path with no matching document (already
// removed, or never indexed) is a no-op.
func (s *Supervisor) enqueueDelete(ctx context.Context, path string) {
	lock := s.stripeFor(path)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.metadata.GetDocumentByPath(ctx, path)
	if err != nil {
		s.logger.Warn("watcher delete lookup failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if doc == nil {
		return
	}
	if err := s.orchestrator.DeleteDocument(ctx, doc.ID, s.scope); err != nil {
		s.logger.Warn("watcher-driven delete failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

func (s *Supervisor) stripeFor(path string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return &s.stripes[h.Sum32()%stripeCount]
}
