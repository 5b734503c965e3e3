// Package index implements the ingest pipeline: resolve, dedup, extract,
// chunk, embed, and persist a document across the metadata and vector
// stores, and the mirrored delete/clear maintenance paths.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/docrag/engine/internal/chunk"
	"github.com/docrag/engine/internal/config"
	"github.com/docrag/engine/internal/embed"
	"github.com/docrag/engine/internal/extract"
	"github.com/docrag/engine/internal/memstat"
	"github.com/docrag/engine/internal/ragerr"
	"github.com/docrag/engine/internal/store"
)

// embeddingBatchSize is the number of chunks streamed to the embedder and
// vector store per round trip, bounding peak memory to roughly one
// batch's worth of vectors at a time.
const embeddingBatchSize = 50

// Request describes one document to ingest.
type Request struct {
	URI         string
	Scope       store.Scope
	WorkspaceID string
}

// Result summarizes a completed (or short-circuited) ingest.
type Result struct {
	Success    bool
	Message    string
	DocID      string
	ChunkCount int
}

// Orchestrator runs the ingest and maintenance pipeline against one
// metadata store and one vector store. At most one IndexDocument call
// executes its body at a time; concurrent requests for the same checksum
// are collapsed into a single execution.
type Orchestrator struct {
	metadata store.MetadataStore
	vectors  store.VectorStore
	embedder embed.Embedder

	chunking config.ChunkingConfig

	sem    *semaphore.Weighted
	dedup  singleflight.Group
	logger *slog.Logger
}

// New constructs an Orchestrator. embedder, metadata, and vectors must be
// non-nil.
func New(metadata store.MetadataStore, vectors store.VectorStore, embedder embed.Embedder, chunking config.ChunkingConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		metadata: metadata,
		vectors:  vectors,
		embedder: embedder,
		chunking: chunking,
		sem:      semaphore.NewWeighted(1),
		logger:   logger,
	}
}

// IndexDocument runs the 9-step ingest pipeline for req. Duplicate
// concurrent requests for the same file content are collapsed into one
// execution via the checksum-keyed singleflight group.
func (o *Orchestrator) IndexDocument(ctx context.Context, req Request) (Result, error) {
	if !req.Scope.Valid() {
		return Result{}, ragerr.New(ragerr.ErrCodeInvalidScope, "unknown scope", nil).WithDetail("scope", string(req.Scope))
	}

	info, err := os.Stat(req.URI)
	if err != nil {
		return Result{}, ragerr.Wrap(ragerr.ErrCodeFileNotFound, err).WithDetail("uri", req.URI)
	}
	const maxSourceBytes = 100 * 1024 * 1024
	if info.Size() > maxSourceBytes {
		return Result{}, ragerr.New(ragerr.ErrCodeOversizedSource, "source exceeds 100 MiB limit", nil).WithDetail("uri", req.URI)
	}

	checksum, err := checksumFile(req.URI)
	if err != nil {
		return Result{}, ragerr.Wrap(ragerr.ErrCodeFileNotFound, err).WithDetail("uri", req.URI)
	}

	v, err, _ := o.dedup.Do(string(req.Scope)+":"+checksum, func() (interface{}, error) {
		return o.indexChecksummed(ctx, req, info, checksum)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (o *Orchestrator) indexChecksummed(ctx context.Context, req Request, info os.FileInfo, checksum string) (Result, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return Result{}, ragerr.Wrap(ragerr.ErrCodeInternal, err)
	}
	defer o.sem.Release(1)

	docID := generateDocID(req.URI, req.Scope, checksum)
	memstat.LogStage(ctx, o.logger, docID, "start")

	existing, err := o.metadata.GetDocumentByChecksum(ctx, req.Scope, checksum)
	if err != nil {
		return Result{}, ragerr.Wrap(ragerr.ErrCodeInternal, err)
	}
	if existing != nil {
		now := time.Now().UTC()
		if err := o.metadata.TouchLastIndexed(ctx, existing.ID, now); err != nil {
			return Result{}, ragerr.Wrap(ragerr.ErrCodeInternal, err)
		}
		return Result{Success: true, Message: "already indexed", DocID: existing.ID}, nil
	}

	extracted, err := extract.Extract(ctx, o.logger, req.URI, info.Size(), info.ModTime())
	if err != nil {
		return Result{}, err
	}
	memstat.LogStage(ctx, o.logger, docID, "post-extract")

	if len(extracted.Text) == 0 {
		return Result{}, ragerr.New(ragerr.ErrCodeNoExtractableText, "no extractable text found in document", nil).WithDetail("uri", req.URI)
	}

	chunks := chunk.Chunk(docID, extracted.Text, chunk.Options{
		Size:    o.chunking.ChunkSize,
		Overlap: o.chunking.ChunkOverlap,
	})
	memstat.LogStage(ctx, o.logger, docID, "post-chunk")
	if len(chunks) == 0 {
		return Result{}, ragerr.New(ragerr.ErrCodeNoExtractableText, "no retrievable chunks produced", nil).WithDetail("uri", req.URI)
	}

	now := time.Now().UTC()
	doc := &store.Document{
		ID:          docID,
		Filename:    filenameFromURI(req.URI),
		FilePath:    req.URI,
		FileType:    store.FileFormat(extractFormat(req.URI)),
		FileSize:    info.Size(),
		Scope:       req.Scope,
		UploadedAt:  now,
		LastIndexed: now,
		Checksum:    checksum,
	}
	storeChunks := make([]*store.Chunk, len(chunks))
	for i, c := range chunks {
		storeChunks[i] = &store.Chunk{
			ChunkID:    c.ID,
			DocID:      c.DocID,
			Text:       c.Text,
			ChunkIndex: c.Index,
			Tokens:     c.TokenCount,
		}
	}

	if err := o.metadata.InsertDocumentWithChunks(ctx, doc, storeChunks); err != nil {
		if _, ok := err.(store.ErrDuplicateChecksum); ok {
			return Result{Success: true, Message: "already indexed", DocID: docID}, nil
		}
		return Result{}, ragerr.Wrap(ragerr.ErrCodeIndexFailed, err)
	}

	if err := o.vectors.EnsureCollection(req.Scope); err != nil {
		o.cleanupAfterFailure(ctx, docID, req.Scope)
		return Result{}, ragerr.Wrap(ragerr.ErrCodeIndexFailed, err)
	}

	if err := o.embedAndStore(ctx, docID, req.Scope, doc, chunks); err != nil {
		o.cleanupAfterFailure(ctx, docID, req.Scope)
		return Result{}, err
	}
	memstat.LogStage(ctx, o.logger, docID, "post-batch")

	return Result{Success: true, Message: "indexed", DocID: docID, ChunkCount: len(chunks)}, nil
}

// embedAndStore streams chunks to the embedder and vector store in
// batches of embeddingBatchSize, releasing each batch's buffers before
// moving to the next.
func (o *Orchestrator) embedAndStore(ctx context.Context, docID string, scope store.Scope, doc *store.Document, chunks []chunk.Chunk) error {
	for start := 0; start < len(chunks); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		ids := make([]string, len(batch))
		payloads := make([]store.VectorPayload, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
			ids[i] = c.ID
			payloads[i] = store.VectorPayload{
				DocID:      docID,
				ChunkID:    c.ID,
				Filename:   doc.Filename,
				FileType:   doc.FileType,
				ChunkIndex: c.Index,
				Scope:      scope,
			}
		}

		vectors, err := o.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return ragerr.Wrap(ragerr.ErrCodeEmbeddingFailed, err).WithDetail("docId", docID)
		}

		if err := o.vectors.Add(ctx, scope, ids, vectors, payloads); err != nil {
			return ragerr.Wrap(ragerr.ErrCodeIndexFailed, err).WithDetail("docId", docID)
		}

		vectors = nil
		texts = nil
		runtime.GC()

		if ctx.Err() != nil {
			return ragerr.Wrap(ragerr.ErrCodeInternal, ctx.Err())
		}
	}
	return nil
}

// cleanupAfterFailure rolls back a partially-ingested document: metadata
// row first (cascades chunks), then a best-effort vector purge so the two
// stores never disagree about which documents exist.
func (o *Orchestrator) cleanupAfterFailure(ctx context.Context, docID string, scope store.Scope) {
	if err := o.metadata.DeleteDocument(ctx, docID); err != nil {
		o.logger.Error("failed to roll back metadata after ingest failure",
			slog.String("docId", docID), slog.String("error", err.Error()))
	}
	if err := o.vectors.DeleteByDocID(ctx, scope, docID); err != nil {
		o.logger.Error("failed to roll back vectors after ingest failure",
			slog.String("docId", docID), slog.String("error", err.Error()))
	}
}

// DeleteDocument removes docId from both stores. Metadata is deleted
// first so the UI never observes an orphan document row pointing at
// missing vectors.
func (o *Orchestrator) DeleteDocument(ctx context.Context, docID string, scope store.Scope) error {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return ragerr.Wrap(ragerr.ErrCodeInternal, err)
	}
	defer o.sem.Release(1)

	if err := o.metadata.DeleteDocument(ctx, docID); err != nil {
		return ragerr.Wrap(ragerr.ErrCodeIndexFailed, err)
	}
	if err := o.vectors.DeleteByDocID(ctx, scope, docID); err != nil {
		return ragerr.Wrap(ragerr.ErrCodeIndexFailed, err)
	}
	return nil
}

// ClearAll purges both stores. Used when backend dimensions change or on
// explicit user request.
func (o *Orchestrator) ClearAll(ctx context.Context) error {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return ragerr.Wrap(ragerr.ErrCodeInternal, err)
	}
	defer o.sem.Release(1)

	if err := o.metadata.ClearAll(ctx); err != nil {
		return ragerr.Wrap(ragerr.ErrCodeIndexFailed, err)
	}
	if err := o.vectors.ClearAll(); err != nil {
		return ragerr.Wrap(ragerr.ErrCodeIndexFailed, err)
	}
	return nil
}

func checksumFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// generateDocID derives a stable document id from the normalized absolute
// path, the scope, and the content checksum (spec.md §3). Hashing in the
// path and scope keeps byte-identical content indexed under different
// scopes (or different paths) from colliding on the same id.
func generateDocID(uri string, scope store.Scope, checksum string) string {
	normalized := filepath.Clean(uri)
	if abs, err := filepath.Abs(normalized); err == nil {
		normalized = abs
	}
	sum := sha256.Sum256([]byte(normalized + "\x00" + string(scope) + "\x00" + checksum))
	return fmt.Sprintf("doc-%s", hex.EncodeToString(sum[:])[:16])
}

func filenameFromURI(uri string) string {
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '/' || uri[i] == '\\' {
			return uri[i+1:]
		}
	}
	return uri
}

func extractFormat(uri string) string {
	ext := ""
	for i := len(uri) - 1; i >= 0 && uri[i] != '/' && uri[i] != '\\'; i-- {
		if uri[i] == '.' {
			ext = uri[i+1:]
			break
		}
	}
	switch ext {
	case "pdf":
		return "pdf"
	case "docx":
		return "docx"
	case "md", "markdown":
		return "md"
	default:
		return "txt"
	}
}
