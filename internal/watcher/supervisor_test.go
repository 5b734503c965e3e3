package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docrag/engine/internal/config"
	"github.com/docrag/engine/internal/embed"
	"github.com/docrag/engine/internal/index"
	"github.com/docrag/engine/internal/store"
)

func newTestSupervisor(t *testing.T) (*Supervisor, store.MetadataStore) {
	t.Helper()
	meta, err := store.NewSQLiteMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	vectors := store.NewHNSWStore()
	t.Cleanup(func() { _ = vectors.Close() })

	embedder := embed.NewCachedEmbedder(embed.NewStaticEmbedder(embed.StaticDimensions), embed.DefaultEmbeddingCacheSize)
	orchestrator := index.New(meta, vectors, embedder, config.ChunkingConfig{ChunkSize: 500, ChunkOverlap: 50}, nil)

	sup := NewSupervisor(orchestrator, meta, store.ScopeWorkspaceDocs, Options{DebounceWindow: 20 * time.Millisecond, PollInterval: 50 * time.Millisecond}, nil)
	return sup, meta
}

func TestSupervisorStartsIdle(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	assert.Equal(t, StateIdle, sup.State())
}

func TestSupervisorSetFolderEnumeratesExistingFiles(t *testing.T) {
	sup, meta := newTestSupervisor(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.txt"), []byte("Existing content indexed on startup enumeration."), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sup.SetFolder(ctx, dir))
	assert.Equal(t, StateWatching, sup.State())

	stats, err := meta.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentCount)
}

func TestSupervisorDisablePreservesIndex(t *testing.T) {
	sup, meta := newTestSupervisor(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.txt"), []byte("Content that should survive disabling the watcher."), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sup.SetFolder(ctx, dir))
	sup.Disable()
	assert.Equal(t, StateDisabled, sup.State())

	stats, err := meta.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentCount)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "watching", StateWatching.String())
	assert.Equal(t, "disabled", StateDisabled.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestSupervisorStripeForIsStableForSamePath(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	a := sup.stripeFor("/workspace/doc.txt")
	b := sup.stripeFor("/workspace/doc.txt")
	assert.Same(t, a, b)
}
