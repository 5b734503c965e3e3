package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetadataStore(t *testing.T) *SQLiteMetadataStore {
	t.Helper()
	s, err := NewSQLiteMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleDocument(id, checksum string) *Document {
	now := time.Now().UTC().Truncate(time.Second)
	return &Document{
		ID:          id,
		Filename:    "report.pdf",
		FilePath:    "/workspace/report.pdf",
		FileType:    FormatPDF,
		FileSize:    1024,
		Scope:       ScopeWorkspaceDocs,
		UploadedAt:  now,
		LastIndexed: now,
		Checksum:    checksum,
	}
}

func sampleChunks(docID string, n int) []*Chunk {
	chunks := make([]*Chunk, n)
	for i := 0; i < n; i++ {
		chunks[i] = &Chunk{
			ChunkID:    docID + "-chunk-" + string(rune('0'+i)),
			DocID:      docID,
			Text:       "chunk text",
			ChunkIndex: i,
			Tokens:     3,
		}
	}
	return chunks
}

func TestInsertDocumentWithChunks(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	doc := sampleDocument("doc-1", "checksum-1")
	chunks := sampleChunks("doc-1", 3)

	require.NoError(t, s.InsertDocumentWithChunks(ctx, doc, chunks))

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, doc.Checksum, got.Checksum)

	gotChunks, err := s.GetChunks(ctx, []string{chunks[0].ChunkID, chunks[1].ChunkID, chunks[2].ChunkID})
	require.NoError(t, err)
	assert.Len(t, gotChunks, 3)
}

func TestInsertDuplicateChecksumFails(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	doc := sampleDocument("doc-1", "checksum-1")
	require.NoError(t, s.InsertDocumentWithChunks(ctx, doc, sampleChunks("doc-1", 1)))

	dup := sampleDocument("doc-2", "checksum-1")
	err := s.InsertDocumentWithChunks(ctx, dup, sampleChunks("doc-2", 1))
	require.Error(t, err)
	assert.IsType(t, ErrDuplicateChecksum{}, err)
}

func TestInsertDocumentPrimaryKeyCollisionIsNotMisreportedAsDuplicateChecksum(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDocumentWithChunks(ctx, sampleDocument("doc-1", "checksum-1"), sampleChunks("doc-1", 1)))

	// Same id, different checksum: a PK collision, not a duplicate-content
	// insert. Must surface as a real error, never "already indexed".
	clash := sampleDocument("doc-1", "checksum-2")
	err := s.InsertDocumentWithChunks(ctx, clash, sampleChunks("doc-1", 1))
	require.Error(t, err)
	assert.NotIsType(t, ErrDuplicateChecksum{}, err)
}

func TestDeleteDocumentCascadesChunks(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	doc := sampleDocument("doc-1", "checksum-1")
	chunks := sampleChunks("doc-1", 2)
	require.NoError(t, s.InsertDocumentWithChunks(ctx, doc, chunks))

	require.NoError(t, s.DeleteDocument(ctx, "doc-1"))

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	gotChunks, err := s.GetChunks(ctx, []string{chunks[0].ChunkID, chunks[1].ChunkID})
	require.NoError(t, err)
	assert.Empty(t, gotChunks)
}

func TestIsDocumentIndexed(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	ok, err := s.IsDocumentIndexed(ctx, ScopeWorkspaceDocs, "checksum-1")
	require.NoError(t, err)
	assert.False(t, ok)

	doc := sampleDocument("doc-1", "checksum-1")
	require.NoError(t, s.InsertDocumentWithChunks(ctx, doc, sampleChunks("doc-1", 1)))

	ok, err = s.IsDocumentIndexed(ctx, ScopeWorkspaceDocs, "checksum-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCountDocumentsByType(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDocumentWithChunks(ctx, sampleDocument("doc-1", "c1"), sampleChunks("doc-1", 1)))
	require.NoError(t, s.InsertDocumentWithChunks(ctx, sampleDocument("doc-2", "c2"), sampleChunks("doc-2", 1)))

	counts, err := s.CountDocumentsByType(ctx, ScopeWorkspaceDocs)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[FormatPDF])
}

func TestAppendSearchHistoryAndStats(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDocumentWithChunks(ctx, sampleDocument("doc-1", "c1"), sampleChunks("doc-1", 2)))
	require.NoError(t, s.AppendSearchHistory(ctx, &SearchHistoryEntry{
		Query: "policy", Scope: ScopeWorkspaceDocs, Timestamp: time.Now(), ResultCount: 2, ResponseTime: 50 * time.Millisecond,
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, 2, stats.ChunkCount)
	assert.Equal(t, 1, stats.ByScope[ScopeWorkspaceDocs])
	assert.Equal(t, int64(1024), stats.SizeByType[FormatPDF])
	assert.Equal(t, int64(1024), stats.TotalSize)
	assert.Equal(t, float64(3), stats.AvgTokens)
}

func TestGetDocumentsByScope(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDocumentWithChunks(ctx, sampleDocument("doc-1", "c1"), sampleChunks("doc-1", 1)))

	docs, err := s.GetDocumentsByScope(ctx, ScopeWorkspaceDocs)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-1", docs[0].ID)

	empty, err := s.GetDocumentsByScope(ctx, ScopePolicyManual)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetChunkIDsByScope(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	chunks := sampleChunks("doc-1", 2)
	require.NoError(t, s.InsertDocumentWithChunks(ctx, sampleDocument("doc-1", "c1"), chunks))

	ids, err := s.GetChunkIDsByScope(ctx, ScopeWorkspaceDocs)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	empty, err := s.GetChunkIDsByScope(ctx, ScopePolicyManual)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestClearAll(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDocumentWithChunks(ctx, sampleDocument("doc-1", "c1"), sampleChunks("doc-1", 1)))
	require.NoError(t, s.ClearAll(ctx))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DocumentCount)
	assert.Equal(t, 0, stats.ChunkCount)
}

func TestGetDocumentByPath(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	doc := sampleDocument("doc-1", "checksum-1")
	require.NoError(t, s.InsertDocumentWithChunks(ctx, doc, sampleChunks("doc-1", 1)))

	got, err := s.GetDocumentByPath(ctx, doc.FilePath)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "doc-1", got.ID)

	missing, err := s.GetDocumentByPath(ctx, "/does/not/exist.pdf")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTouchLastIndexed(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	doc := sampleDocument("doc-1", "c1")
	require.NoError(t, s.InsertDocumentWithChunks(ctx, doc, sampleChunks("doc-1", 1)))

	later := doc.LastIndexed.Add(time.Hour)
	require.NoError(t, s.TouchLastIndexed(ctx, "doc-1", later))

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, later.Unix(), got.LastIndexed.Unix())
}
