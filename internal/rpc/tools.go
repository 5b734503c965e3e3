package rpc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/docrag/engine/internal/index"
	"github.com/docrag/engine/internal/retrieve"
	"github.com/docrag/engine/internal/store"
)

const timeLayout = time.RFC3339

// StatusResult is the {success, message} shape returned by every
// user-visible mutating operation.
type StatusResult struct {
	Success bool   `json:"success" jsonschema:"whether the operation completed"`
	Message string `json:"message" jsonschema:"human-readable outcome description"`
}

// GetStatsInput defines the input schema for the getStats tool (no parameters).
type GetStatsInput struct{}

// ClearAllEmbeddingsInput defines the input schema for the
// clearAllEmbeddings tool (no parameters).
type ClearAllEmbeddingsInput struct{}

// InitializeInput carries the optional credential passed to initialize.
type InitializeInput struct {
	WorkspaceID string `json:"workspaceId,omitempty" jsonschema:"identifies the workspace whose index scope applies"`
	Credential  string `json:"credential,omitempty" jsonschema:"API key for a remote embedding backend, if configured"`
}

// IndexDocumentInput is the input schema for the indexDocument tool.
type IndexDocumentInput struct {
	URI         string `json:"uri" jsonschema:"file path or URI of the document to index"`
	Scope       string `json:"scope" jsonschema:"policy_manual or workspace_docs"`
	WorkspaceID string `json:"workspaceId,omitempty" jsonschema:"workspace identity, required when scope is workspace-local"`
}

// IndexDocumentOutput is the output schema for the indexDocument tool.
type IndexDocumentOutput struct {
	StatusResult
	DocID string `json:"docId,omitempty" jsonschema:"the indexed document's id"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"natural-language search query"`
	Scope string `json:"scope,omitempty" jsonschema:"policy_manual, workspace_docs, or both (default both)"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum attributions to return (default 5)"`
}

// AttributionOutput mirrors retrieve.Attribution with JSON tags for the
// wire format.
type AttributionOutput struct {
	DocID      string  `json:"docId"`
	Filename   string  `json:"filename"`
	ChunkID    string  `json:"chunkId"`
	ChunkIndex int     `json:"chunkIndex"`
	RangeHint  string  `json:"rangeHint"`
	Score      float32 `json:"score"`
	Scope      string  `json:"scope"`
}

// SearchOutput is the output schema for the search tool: a ContextPack.
type SearchOutput struct {
	AnswerContext string              `json:"answerContext"`
	Attributions  []AttributionOutput `json:"attributions"`
	TotalResults  int                 `json:"totalResults"`
	ResponseTimeMS int64              `json:"responseTimeMs"`
}

// GetStatsOutput is the output schema for the getStats tool.
type GetStatsOutput struct {
	Documents      []DocumentTypeStat `json:"documents" jsonschema:"per-filetype document counts and sizes"`
	Chunks         ChunkStat          `json:"chunks"`
	TotalDocuments int                `json:"totalDocuments"`
	TotalSize      int64              `json:"totalSize"`
}

// DocumentTypeStat is one row of getStats' documents array.
type DocumentTypeStat struct {
	FileType  string `json:"filetype"`
	TypeCount int    `json:"typeCount"`
	TotalSize int64  `json:"totalSize"`
}

// ChunkStat is the chunks field of getStats.
type ChunkStat struct {
	TotalChunks int     `json:"totalChunks"`
	AvgTokens   float64 `json:"avgTokens"`
}

// DeleteDocumentInput is the input schema for the deleteDocument tool.
type DeleteDocumentInput struct {
	DocID string `json:"docId" jsonschema:"id of the document to remove"`
	Scope string `json:"scope" jsonschema:"the scope the document was indexed under"`
}

// IsDocumentIndexedInput is the input schema for the isDocumentIndexed tool.
type IsDocumentIndexedInput struct {
	URI   string `json:"uri" jsonschema:"file path or URI to check"`
	Scope string `json:"scope" jsonschema:"policy_manual or workspace_docs"`
}

// IsDocumentIndexedOutput is the output schema for the isDocumentIndexed tool.
type IsDocumentIndexedOutput struct {
	Indexed bool `json:"indexed"`
}

// GetDocumentsByTypeInput is the input schema for the getDocumentsByType tool.
type GetDocumentsByTypeInput struct {
	Scope string `json:"scope" jsonschema:"policy_manual or workspace_docs"`
}

// DocumentOutput mirrors store.Document with JSON tags for the wire format.
type DocumentOutput struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	FilePath    string `json:"filePath"`
	FileType    string `json:"fileType"`
	FileSize    int64  `json:"fileSize"`
	Scope       string `json:"scope"`
	UploadedAt  string `json:"uploadedAt"`
	LastIndexed string `json:"lastIndexed"`
	Checksum    string `json:"checksum"`
}

// GetDocumentsByTypeOutput is the output schema for the
// getDocumentsByType tool.
type GetDocumentsByTypeOutput struct {
	Documents []DocumentOutput `json:"documents"`
}

// IndexDocument resolves, dedups, extracts, chunks, embeds, and persists
// one document. It never returns an error to the caller; failures are
// reported via StatusResult.Success.
func (e *Engine) IndexDocument(ctx context.Context, in IndexDocumentInput) IndexDocumentOutput {
	if err := e.checkEnabled(); err != nil {
		return IndexDocumentOutput{StatusResult: StatusResult{Success: false, Message: messageFor(err)}}
	}
	scope := store.Scope(in.Scope)
	result, err := e.Indexer().IndexDocument(ctx, index.Request{
		URI:         in.URI,
		Scope:       scope,
		WorkspaceID: in.WorkspaceID,
	})
	if err != nil {
		return IndexDocumentOutput{StatusResult: StatusResult{Success: false, Message: messageFor(err)}}
	}
	return IndexDocumentOutput{
		StatusResult: StatusResult{Success: result.Success, Message: result.Message},
		DocID:        result.DocID,
	}
}

// Search runs retrieval and assembles a ContextPack. It fails soft: any
// internal error yields an empty pack rather than propagating.
func (e *Engine) Search(ctx context.Context, in SearchInput) SearchOutput {
	if err := e.checkEnabled(); err != nil {
		e.logger.Warn("search rejected", slog.String("reason", messageFor(err)))
		return SearchOutput{Attributions: []AttributionOutput{}}
	}
	pack := e.Retriever().Search(ctx, retrieve.Request{
		Query: in.Query,
		Scope: retrieve.ScopeSelector(in.Scope),
		Limit: in.Limit,
	})

	out := SearchOutput{
		AnswerContext:  pack.AnswerContext,
		TotalResults:   pack.TotalResults,
		ResponseTimeMS: pack.ResponseTime.Milliseconds(),
		Attributions:   make([]AttributionOutput, 0, len(pack.Attributions)),
	}
	for _, a := range pack.Attributions {
		out.Attributions = append(out.Attributions, AttributionOutput{
			DocID:      a.DocID,
			Filename:   a.Filename,
			ChunkID:    a.ChunkID,
			ChunkIndex: a.ChunkIndex,
			RangeHint:  a.RangeHint,
			Score:      a.Score,
			Scope:      string(a.Scope),
		})
	}
	return out
}

// GetStats reports aggregate counts across both stores' scopes.
func (e *Engine) GetStats(ctx context.Context) (GetStatsOutput, error) {
	if err := e.checkEnabled(); err != nil {
		return GetStatsOutput{}, err
	}
	stats, err := e.Metadata().Stats(ctx)
	if err != nil {
		return GetStatsOutput{}, err
	}

	out := GetStatsOutput{
		Documents:      make([]DocumentTypeStat, 0, len(stats.ByFileType)),
		Chunks:         ChunkStat{TotalChunks: stats.ChunkCount, AvgTokens: stats.AvgTokens},
		TotalDocuments: stats.DocumentCount,
		TotalSize:      stats.TotalSize,
	}
	for ft, count := range stats.ByFileType {
		out.Documents = append(out.Documents, DocumentTypeStat{
			FileType:  string(ft),
			TypeCount: count,
			TotalSize: stats.SizeByType[ft],
		})
	}
	return out, nil
}

// DeleteDocument removes a document and its chunks from both stores.
func (e *Engine) DeleteDocument(ctx context.Context, in DeleteDocumentInput) StatusResult {
	if err := e.checkEnabled(); err != nil {
		return StatusResult{Success: false, Message: messageFor(err)}
	}
	if err := e.Indexer().DeleteDocument(ctx, in.DocID, store.Scope(in.Scope)); err != nil {
		return StatusResult{Success: false, Message: messageFor(err)}
	}
	return StatusResult{Success: true, Message: "document deleted"}
}

// IsDocumentIndexed reports whether the file at uri has already been
// ingested in scope, determined by content checksum.
func (e *Engine) IsDocumentIndexed(ctx context.Context, in IsDocumentIndexedInput) (IsDocumentIndexedOutput, error) {
	if err := e.checkEnabled(); err != nil {
		return IsDocumentIndexedOutput{}, err
	}
	checksum, err := checksumFile(in.URI)
	if err != nil {
		return IsDocumentIndexedOutput{}, err
	}
	ok, err := e.Metadata().IsDocumentIndexed(ctx, store.Scope(in.Scope), checksum)
	if err != nil {
		return IsDocumentIndexedOutput{}, err
	}
	return IsDocumentIndexedOutput{Indexed: ok}, nil
}

// GetDocumentsByType lists every document indexed in scope.
func (e *Engine) GetDocumentsByType(ctx context.Context, in GetDocumentsByTypeInput) (GetDocumentsByTypeOutput, error) {
	if err := e.checkEnabled(); err != nil {
		return GetDocumentsByTypeOutput{}, err
	}
	docs, err := e.Metadata().GetDocumentsByScope(ctx, store.Scope(in.Scope))
	if err != nil {
		return GetDocumentsByTypeOutput{}, err
	}
	out := GetDocumentsByTypeOutput{Documents: make([]DocumentOutput, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, DocumentOutput{
			ID:          d.ID,
			Filename:    d.Filename,
			FilePath:    d.FilePath,
			FileType:    string(d.FileType),
			FileSize:    d.FileSize,
			Scope:       string(d.Scope),
			UploadedAt:  d.UploadedAt.Format(timeLayout),
			LastIndexed: d.LastIndexed.Format(timeLayout),
			Checksum:    d.Checksum,
		})
	}
	return out, nil
}

// ClearAllEmbeddings purges both stores entirely. Used when backend
// dimensions change or on explicit user request.
func (e *Engine) ClearAllEmbeddings(ctx context.Context) StatusResult {
	if err := e.checkEnabled(); err != nil {
		return StatusResult{Success: false, Message: messageFor(err)}
	}
	if err := e.Indexer().ClearAll(ctx); err != nil {
		return StatusResult{Success: false, Message: messageFor(err)}
	}
	return StatusResult{Success: true, Message: "all embeddings cleared"}
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
