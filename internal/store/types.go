// Package store provides the dual-store persistence layer: a SQLite
// metadata store and an HNSW vector store, one collection per scope.
package store

import (
	"context"
	"fmt"
	"time"
)

// Scope partitions documents and embeddings into independent collections.
type Scope string

const (
	ScopePolicyManual Scope = "policy_manual"
	ScopeWorkspaceDocs Scope = "workspace_docs"
)

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	return s == ScopePolicyManual || s == ScopeWorkspaceDocs
}

// FileFormat is the closed set of document formats the extractor
// supports.
type FileFormat string

const (
	FormatPDF  FileFormat = "pdf"
	FormatDOCX FileFormat = "docx"
	FormatTXT  FileFormat = "txt"
	FormatMD   FileFormat = "md"
)

// Document is a single ingested source file.
type Document struct {
	ID           string
	Filename     string
	FilePath     string
	FileType     FileFormat
	FileSize     int64
	Scope        Scope
	UploadedAt   time.Time
	LastIndexed  time.Time
	Checksum     string
	MetadataJSON string
}

// Chunk is a retrievable slice of a Document's text.
type Chunk struct {
	ChunkID    string
	DocID      string
	Text       string
	ChunkIndex int
	Tokens     int
}

// PolicySection is the dormant hierarchical-heading table. No extraction
// path populates it; it exists so a future extractor can without a
// migration.
type PolicySection struct {
	SectionID    string
	Title        string
	Level        int
	ParentID     string
	DocID        string
	PageNumber   int
	ChunkIDsJSON string
}

// SearchHistoryEntry is one append-only row recording a search call.
type SearchHistoryEntry struct {
	ID           int64
	Query        string
	Scope        Scope
	Timestamp    time.Time
	ResultCount  int
	ResponseTime time.Duration
}

// VectorResult is a single nearest-neighbor hit from the vector store,
// carrying the filtering payload duplicated alongside the embedding.
type VectorResult struct {
	ChunkID    string
	Score      float32
	DocID      string
	Filename   string
	FileType   FileFormat
	ChunkIndex int
	Scope      Scope
}

// VectorPayload is the metadata stored alongside each embedding for
// filtering without a metadata-store round trip.
type VectorPayload struct {
	DocID      string
	ChunkID    string
	Filename   string
	FileType   FileFormat
	ChunkIndex int
	Scope      Scope
}

// MetadataStore persists Document, Chunk, and SearchHistory rows in
// SQLite with foreign keys enforced. The schema also carries the
// policy_sections table, which no method writes.
type MetadataStore interface {
	// InsertDocumentWithChunks inserts a Document and its Chunks in one
	// transaction. Returns ErrDuplicateChecksum if a document with the
	// same checksum already exists in scope.
	InsertDocumentWithChunks(ctx context.Context, doc *Document, chunks []*Chunk) error

	// GetDocumentByChecksum returns the document with the given checksum
	// in scope, or nil if none exists.
	GetDocumentByChecksum(ctx context.Context, scope Scope, checksum string) (*Document, error)

	// GetDocument returns a document by ID, or nil if it doesn't exist.
	GetDocument(ctx context.Context, docID string) (*Document, error)

	// GetDocumentByPath returns a document by its source file path, or
	// nil if none exists. Used by the workspace watcher to resolve a
	// DELETED filesystem event to a docId.
	GetDocumentByPath(ctx context.Context, filePath string) (*Document, error)

	// TouchLastIndexed updates a document's lastIndexed timestamp.
	TouchLastIndexed(ctx context.Context, docID string, when time.Time) error

	// DeleteDocument removes a document and cascades its chunks.
	DeleteDocument(ctx context.Context, docID string) error

	// GetChunks returns chunks by ID, in the order requested.
	GetChunks(ctx context.Context, chunkIDs []string) ([]*Chunk, error)

	// CountDocumentsByType returns per-format document counts in scope.
	CountDocumentsByType(ctx context.Context, scope Scope) (map[FileFormat]int, error)

	// GetDocumentsByScope returns every document indexed in scope.
	GetDocumentsByScope(ctx context.Context, scope Scope) ([]*Document, error)

	// GetChunkIDsByScope returns every chunk id belonging to a document
	// indexed in scope. Used by the cross-store consistency check.
	GetChunkIDsByScope(ctx context.Context, scope Scope) ([]string, error)

	// IsDocumentIndexed reports whether a document with the given
	// checksum exists in scope.
	IsDocumentIndexed(ctx context.Context, scope Scope, checksum string) (bool, error)

	// AppendSearchHistory appends a diagnostic search_history row.
	AppendSearchHistory(ctx context.Context, entry *SearchHistoryEntry) error

	// Stats reports aggregate counts across all scopes.
	Stats(ctx context.Context) (*Stats, error)

	// ClearAll drops all rows from every table (documents, chunks,
	// policy_sections, search_history). Used only by the maintenance
	// path.
	ClearAll(ctx context.Context) error

	// Close releases the underlying database connection.
	Close() error
}

// Stats summarizes the metadata store's contents for getStats.
type Stats struct {
	DocumentCount int
	ChunkCount    int
	ByFileType    map[FileFormat]int
	ByScope       map[Scope]int
	SizeByType    map[FileFormat]int64
	TotalSize     int64
	AvgTokens     float64
}

// VectorStore provides nearest-neighbor search over one scope's
// embeddings.
type VectorStore interface {
	// EnsureCollection is idempotent; it prepares the named collection
	// for use, deriving its dimension from the first Add call.
	EnsureCollection(scope Scope) error

	// Add atomically inserts a batch of vectors with their payloads.
	Add(ctx context.Context, scope Scope, chunkIDs []string, vectors [][]float32, payloads []VectorPayload) error

	// Query returns the topK nearest neighbors to queryVector in scope,
	// in non-increasing score order.
	Query(ctx context.Context, scope Scope, queryVector []float32, topK int) ([]VectorResult, error)

	// DeleteByDocID removes all vectors whose payload's DocID matches.
	DeleteByDocID(ctx context.Context, scope Scope, docID string) error

	// Contains reports whether chunkID has a vector in scope's collection.
	// Used by the cross-store consistency check.
	Contains(scope Scope, chunkID string) bool

	// ChunkIDs returns every chunk id stored in scope's collection. Used
	// by the cross-store consistency check to find vectors with no
	// surviving metadata row.
	ChunkIDs(scope Scope) []string

	// ClearAll drops every collection. Used only by the maintenance path.
	ClearAll() error

	// Save persists every collection to dir.
	Save(dir string) error

	// Load restores every collection from dir. Missing files are treated
	// as an empty collection rather than an error.
	Load(dir string) error

	// Close releases resources held by every collection.
	Close() error
}

// ErrDimensionMismatch indicates an embedding's width doesn't match the
// scope's established dimension.
type ErrDimensionMismatch struct {
	Scope    Scope
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch in scope %s: expected %d, got %d (run 'ragctl clear' to reset)", e.Scope, e.Expected, e.Got)
}

// ErrDuplicateChecksum indicates a document with the same checksum
// already exists in scope; callers should treat this as an
// already-indexed short circuit, not a failure.
type ErrDuplicateChecksum struct {
	Scope    Scope
	Checksum string
}

func (e ErrDuplicateChecksum) Error() string {
	return fmt.Sprintf("document with checksum %s already indexed in scope %s", e.Checksum, e.Scope)
}
