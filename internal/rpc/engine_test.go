package rpc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docrag/engine/internal/config"
	"github.com/docrag/engine/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("USERPROFILE", root)

	cfg := config.NewConfig()
	cfg.Storage.StorageScope = config.ScopeWorkspace
	cfg.Embeddings.Backend = config.EmbeddingBackendStatic

	e := NewEngine(cfg, nil)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx, "test-workspace", ""))
	t.Cleanup(func() { _ = e.Close() })
	return e, root
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEngineInitializeIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx, "test-workspace", ""))
	assert.NotNil(t, e.Indexer())
	assert.NotNil(t, e.Retriever())
}

func TestIndexDocumentAndSearchRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "policy.txt", "Employees are entitled to medical benefits after ninety days.")

	out := e.IndexDocument(ctx, IndexDocumentInput{URI: path, Scope: string(store.ScopePolicyManual)})
	require.True(t, out.Success)
	assert.NotEmpty(t, out.DocID)

	pack := e.Search(ctx, SearchInput{Query: "medical benefits", Scope: "policy_manual", Limit: 5})
	require.Len(t, pack.Attributions, 1)
	assert.Equal(t, "policy.txt", pack.Attributions[0].Filename)
	assert.Equal(t, "Chunk 1", pack.Attributions[0].RangeHint)
}

func TestIndexDocumentDedupReturnsSuccessTwice(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "policy.txt", "Same content every time.")
	in := IndexDocumentInput{URI: path, Scope: string(store.ScopePolicyManual)}

	first := e.IndexDocument(ctx, in)
	require.True(t, first.Success)
	second := e.IndexDocument(ctx, in)
	require.True(t, second.Success)

	stats, err := e.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
}

func TestDeleteDocumentRemovesFromBothStores(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "note.md", "# Title\n\nSome workspace documentation content here.")
	out := e.IndexDocument(ctx, IndexDocumentInput{URI: path, Scope: string(store.ScopeWorkspaceDocs)})
	require.True(t, out.Success)

	del := e.DeleteDocument(ctx, DeleteDocumentInput{DocID: out.DocID, Scope: string(store.ScopeWorkspaceDocs)})
	assert.True(t, del.Success)

	stats, err := e.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalDocuments)
}

func TestIsDocumentIndexedReflectsChecksum(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "a.txt", "unique content for indexed check")
	before, err := e.IsDocumentIndexed(ctx, IsDocumentIndexedInput{URI: path, Scope: string(store.ScopeWorkspaceDocs)})
	require.NoError(t, err)
	assert.False(t, before.Indexed)

	out := e.IndexDocument(ctx, IndexDocumentInput{URI: path, Scope: string(store.ScopeWorkspaceDocs)})
	require.True(t, out.Success)

	after, err := e.IsDocumentIndexed(ctx, IsDocumentIndexedInput{URI: path, Scope: string(store.ScopeWorkspaceDocs)})
	require.NoError(t, err)
	assert.True(t, after.Indexed)
}

func TestGetDocumentsByTypeListsIndexed(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "b.txt", "content for listing by type")
	out := e.IndexDocument(ctx, IndexDocumentInput{URI: path, Scope: string(store.ScopeWorkspaceDocs)})
	require.True(t, out.Success)

	list, err := e.GetDocumentsByType(ctx, GetDocumentsByTypeInput{Scope: string(store.ScopeWorkspaceDocs)})
	require.NoError(t, err)
	require.Len(t, list.Documents, 1)
	assert.Equal(t, "b.txt", list.Documents[0].Filename)
}

func TestIndexDocumentMissingFileFailsSoft(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	out := e.IndexDocument(ctx, IndexDocumentInput{URI: "/does/not/exist.pdf", Scope: string(store.ScopePolicyManual)})
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Message)
}

func TestClearAllEmbeddingsPurgesStores(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "c.txt", "content to be cleared")
	out := e.IndexDocument(ctx, IndexDocumentInput{URI: path, Scope: string(store.ScopeWorkspaceDocs)})
	require.True(t, out.Success)

	result := e.ClearAllEmbeddings(ctx)
	assert.True(t, result.Success)

	stats, err := e.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalDocuments)
}

func TestDisabledEngineRejectsIndexAndSearch(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("USERPROFILE", root)

	cfg := config.NewConfig()
	cfg.Storage.StorageScope = config.ScopeWorkspace
	cfg.Embeddings.Backend = config.EmbeddingBackendStatic
	cfg.RagEnabled = false

	e := NewEngine(cfg, nil)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx, "test-workspace", ""))
	t.Cleanup(func() { _ = e.Close() })

	path := writeTempFile(t, "note.txt", "content that should never get indexed")
	out := e.IndexDocument(ctx, IndexDocumentInput{URI: path, Scope: string(store.ScopeWorkspaceDocs)})
	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "disabled")

	pack := e.Search(ctx, SearchInput{Query: "content"})
	assert.Empty(t, pack.Attributions)

	_, err := e.GetStats(ctx)
	assert.Error(t, err)

	clear := e.ClearAllEmbeddings(ctx)
	assert.False(t, clear.Success)
}

func TestSearchEmptyScopeFailsSoftWhenNothingIndexed(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	pack := e.Search(ctx, SearchInput{Query: "anything", Scope: "both"})
	assert.Equal(t, 0, pack.TotalResults)
	assert.Empty(t, pack.Attributions)
}
