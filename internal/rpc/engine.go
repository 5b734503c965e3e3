// Package rpc implements the RPC boundary: an MCP server exposing the
// index and retrieval orchestrators to the editor's privileged process.
// Every user-visible tool returns a {success, message} shape (or, for
// search, an empty ContextPack) instead of propagating an error across
// the transport, per the engine's error-propagation policy.
package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/docrag/engine/internal/config"
	"github.com/docrag/engine/internal/embed"
	"github.com/docrag/engine/internal/index"
	"github.com/docrag/engine/internal/paths"
	"github.com/docrag/engine/internal/ragerr"
	"github.com/docrag/engine/internal/retrieve"
	"github.com/docrag/engine/internal/store"
	"github.com/docrag/engine/internal/watcher"
)

// Engine owns every stateful component the RPC surface dispatches to: the
// two stores, the embedder, both orchestrators, and the workspace
// watcher. It is constructed empty and brought up by Initialize so the
// RPC layer owns its lifecycle, rather than relying on process-wide
// singletons.
type Engine struct {
	mu sync.RWMutex

	cfg         *config.Config
	workspaceID string

	metadata store.MetadataStore
	vectors  store.VectorStore
	embedder embed.Embedder

	indexer   *index.Orchestrator
	retriever *retrieve.Orchestrator
	watch     *watcher.Supervisor

	logger      *slog.Logger
	initialized bool
}

// NewEngine constructs an uninitialized Engine. Call Initialize before
// any other method.
func NewEngine(cfg *config.Config, logger *slog.Logger) *Engine {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Initialize loads the embedding backend, ensures the on-disk directories
// exist, and opens both stores. It is idempotent: calling it again tears
// down and rebuilds the prior state, so a credential rotation can be
// applied by re-initializing.
func (e *Engine) Initialize(ctx context.Context, workspaceID, credential string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		e.closeLocked()
	}

	e.workspaceID = workspaceID
	scope := string(e.cfg.Storage.StorageScope)
	if err := paths.EnsureDirectories(scope, workspaceID); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	metadataPath := resolveMetadataPath(e.cfg.Storage.StorageScope, workspaceID)
	metadata, err := store.NewSQLiteMetadataStore(metadataPath)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}

	vectors := store.NewHNSWStore()
	vectorDir := resolveVectorDir(e.cfg.Storage.StorageScope, workspaceID)
	if err := vectors.Load(vectorDir); err != nil {
		_ = metadata.Close()
		return fmt.Errorf("load vector store: %w", err)
	}

	embedCfg := e.cfg.Embeddings
	if credential != "" {
		embedCfg.RemoteAPIKey = credential
	}
	embedder, err := embed.New(embedCfg, vectorDir)
	if err != nil {
		_ = metadata.Close()
		_ = vectors.Close()
		return fmt.Errorf("construct embedder: %w", err)
	}

	e.metadata = metadata
	e.vectors = vectors
	e.embedder = embedder
	e.indexer = index.New(metadata, vectors, embedder, e.cfg.Chunking, e.logger)
	e.retriever = retrieve.New(metadata, vectors, embedder, e.cfg.Search.SearchLimit, e.cfg.Search.ContextCharCap, e.logger)
	e.watch = watcher.NewSupervisor(e.indexer, metadata, store.ScopePolicyManual, watcher.Options{
		DebounceWindow: e.cfg.Watch.Debounce,
	}, e.logger)
	e.initialized = true

	return nil
}

// checkEnabled gates every tool against cfg.RagEnabled. Initialize itself
// is never gated: it must still load config and report a stable error,
// rather than leaving the engine permanently uninitialized.
func (e *Engine) checkEnabled() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.cfg.RagEnabled {
		return ragerr.New(ragerr.ErrCodeFeatureDisabled, "the indexing/retrieval subsystem is disabled (ragEnabled=false)", nil)
	}
	return nil
}

// Indexer returns the index orchestrator for direct callers (ragctl).
func (e *Engine) Indexer() *index.Orchestrator {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.indexer
}

// Retriever returns the retrieval orchestrator for direct callers.
func (e *Engine) Retriever() *retrieve.Orchestrator {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.retriever
}

// Metadata returns the metadata store for direct callers (ragctl doctor).
func (e *Engine) Metadata() store.MetadataStore {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.metadata
}

// Vectors returns the vector store for direct callers.
func (e *Engine) Vectors() store.VectorStore {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vectors
}

// Watcher returns the workspace watcher supervisor.
func (e *Engine) Watcher() *watcher.Supervisor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.watch
}

// Close releases every resource Initialize opened.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeLocked()
}

func (e *Engine) closeLocked() error {
	if e.watch != nil {
		e.watch.Disable()
	}
	var firstErr error
	if e.vectors != nil {
		vectorDir := resolveVectorDir(e.cfg.Storage.StorageScope, e.workspaceID)
		if err := e.vectors.Save(vectorDir); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := e.vectors.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.metadata != nil {
		if err := e.metadata.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.embedder != nil {
		if err := e.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.initialized = false
	return firstErr
}

func resolveMetadataPath(scope config.StorageScope, workspaceID string) string {
	if scope == config.ScopeGlobal {
		return paths.GlobalMetadataPath()
	}
	return paths.WorkspaceMetadataPath(workspaceID)
}

func resolveVectorDir(scope config.StorageScope, workspaceID string) string {
	if scope == config.ScopeGlobal {
		return paths.GlobalVectorDir()
	}
	return paths.WorkspaceVectorDir(workspaceID)
}
