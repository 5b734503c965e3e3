package retrieve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docrag/engine/internal/config"
	"github.com/docrag/engine/internal/embed"
	"github.com/docrag/engine/internal/index"
	"github.com/docrag/engine/internal/store"
)

func newTestFixture(t *testing.T) (*Orchestrator, *index.Orchestrator) {
	t.Helper()
	meta, err := store.NewSQLiteMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	vectors := store.NewHNSWStore()
	t.Cleanup(func() { _ = vectors.Close() })

	embedder := embed.NewCachedEmbedder(embed.NewStaticEmbedder(embed.StaticDimensions), embed.DefaultEmbeddingCacheSize)

	idx := index.New(meta, vectors, embedder, config.ChunkingConfig{ChunkSize: 500, ChunkOverlap: 50}, nil)
	ret := New(meta, vectors, embedder, DefaultLimit, 8000, nil)
	return ret, idx
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSearchReturnsEmptyPackWhenNothingIndexed(t *testing.T) {
	ret, _ := newTestFixture(t)
	pack := ret.Search(context.Background(), Request{Query: "anything", Scope: SelectBoth, Limit: 5})
	assert.Equal(t, 0, pack.TotalResults)
	assert.Empty(t, pack.Attributions)
	assert.Empty(t, pack.AnswerContext)
}

func TestSearchReturnsIndexedChunk(t *testing.T) {
	ret, idx := newTestFixture(t)
	ctx := context.Background()

	path := writeTempFile(t, "report.txt", "Quarterly budget review discusses workspace onboarding policy in detail. A second sentence adds unrelated filler about weather.")
	_, err := idx.IndexDocument(ctx, index.Request{URI: path, Scope: store.ScopeWorkspaceDocs})
	require.NoError(t, err)

	pack := ret.Search(ctx, Request{Query: "budget review", Scope: SelectWorkspaceDocs, Limit: 3})
	require.Greater(t, pack.TotalResults, 0)
	require.NotEmpty(t, pack.Attributions)
	assert.Equal(t, "Chunk 1", pack.Attributions[0].RangeHint)
	assert.NotEmpty(t, pack.AnswerContext)
}

func TestSearchCapsLimitAtConfiguredMaximum(t *testing.T) {
	ret, idx := newTestFixture(t)
	ctx := context.Background()

	path := writeTempFile(t, "report.txt", "Sentence one here. Sentence two here. Sentence three here. Sentence four here. Sentence five here. Sentence six here. Sentence seven here.")
	_, err := idx.IndexDocument(ctx, index.Request{URI: path, Scope: store.ScopeWorkspaceDocs})
	require.NoError(t, err)

	pack := ret.Search(ctx, Request{Query: "sentence", Scope: SelectWorkspaceDocs, Limit: 1000})
	assert.LessOrEqual(t, pack.TotalResults, DefaultLimit)
}

func TestRangeHintFormatsOneIndexed(t *testing.T) {
	assert.Equal(t, "Chunk 1", rangeHint(0))
	assert.Equal(t, "Chunk 5", rangeHint(4))
}

func TestScopeSelectorResolvesScopes(t *testing.T) {
	assert.Equal(t, []store.Scope{store.ScopePolicyManual}, SelectPolicyManual.scopes())
	assert.Equal(t, []store.Scope{store.ScopeWorkspaceDocs}, SelectWorkspaceDocs.scopes())
	assert.ElementsMatch(t, []store.Scope{store.ScopePolicyManual, store.ScopeWorkspaceDocs}, SelectBoth.scopes())
}
