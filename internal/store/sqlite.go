package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/docrag/engine/internal/ragerr"
)

// SQLiteMetadataStore implements MetadataStore over modernc.org/sqlite.
// It holds a single connection (SetMaxOpenConns(1)) since the engine's
// concurrency model serializes all writes through one cooperative loop;
// WAL mode lets a concurrent ragctl invocation read without blocking.
type SQLiteMetadataStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

var _ MetadataStore = (*SQLiteMetadataStore)(nil)

// NewSQLiteMetadataStore opens (and migrates) the metadata database at
// path. An empty path opens an in-memory database, used by tests.
func NewSQLiteMetadataStore(path string) (*SQLiteMetadataStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, ragerr.Wrap(ragerr.ErrCodeFilePermission, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCodeConfigInvalid, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, ragerr.Wrap(ragerr.ErrCodeConfigInvalid, err)
		}
	}

	s := &SQLiteMetadataStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteMetadataStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

	CREATE TABLE IF NOT EXISTS documents (
		id            TEXT PRIMARY KEY,
		filename      TEXT NOT NULL,
		filepath      TEXT NOT NULL,
		filetype      TEXT NOT NULL,
		filesize      INTEGER NOT NULL,
		scope         TEXT NOT NULL,
		uploadedAt    INTEGER NOT NULL,
		lastIndexed   INTEGER NOT NULL,
		checksum      TEXT NOT NULL,
		metadataJson  TEXT NOT NULL DEFAULT '{}',
		UNIQUE(checksum, scope)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_filetype ON documents(filetype);
	CREATE INDEX IF NOT EXISTS idx_documents_uploadedAt ON documents(uploadedAt);
	CREATE INDEX IF NOT EXISTS idx_documents_scope ON documents(scope);

	CREATE TABLE IF NOT EXISTS chunks (
		chunkId    TEXT PRIMARY KEY,
		docId      TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		text       TEXT NOT NULL,
		chunkIndex INTEGER NOT NULL,
		tokens     INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_docId ON chunks(docId);

	CREATE TABLE IF NOT EXISTS policy_sections (
		sectionId    TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		level        INTEGER NOT NULL,
		parentId     TEXT REFERENCES policy_sections(sectionId),
		docId        TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		pageNumber   INTEGER,
		chunkIdsJson TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_policy_sections_docId ON policy_sections(docId);

	CREATE TABLE IF NOT EXISTS search_history (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		query        TEXT NOT NULL,
		scope        TEXT NOT NULL,
		timestamp    INTEGER NOT NULL,
		resultCount  INTEGER NOT NULL,
		responseTime INTEGER NOT NULL
	);

	INSERT OR IGNORE INTO schema_version(version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	return nil
}

// InsertDocumentWithChunks performs the single-transaction insert
// required by the metadata store's write discipline: one Document row
// followed by a batch-insert of its Chunks. The unique (checksum, scope)
// constraint is the backstop for the caller's own dedup check.
func (s *SQLiteMetadataStore) InsertDocumentWithChunks(ctx context.Context, doc *Document, chunks []*Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, filename, filepath, filetype, filesize, scope, uploadedAt, lastIndexed, checksum, metadataJson)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.FilePath, string(doc.FileType), doc.FileSize, string(doc.Scope),
		doc.UploadedAt.Unix(), doc.LastIndexed.Unix(), doc.Checksum, doc.MetadataJSON,
	)
	if err != nil {
		if isDuplicateChecksumErr(err) {
			return ErrDuplicateChecksum{Scope: doc.Scope, Checksum: doc.Checksum}
		}
		return ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (chunkId, docId, text, chunkIndex, tokens) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ChunkID, c.DocID, c.Text, c.ChunkIndex, c.Tokens); err != nil {
			return ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	return nil
}

// isDuplicateChecksumErr reports whether err is specifically the
// documents(checksum, scope) unique violation, as opposed to any other
// constraint failure (notably the documents.id primary key, which
// collides only when a caller mis-derives docID and must surface as a
// real error rather than a benign "already indexed"). SQLite's error
// text names the offending column list, e.g. "UNIQUE constraint failed:
// documents.checksum, documents.scope" versus "...: documents.id".
func isDuplicateChecksumErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, "documents.checksum")
}

func (s *SQLiteMetadataStore) GetDocumentByChecksum(ctx context.Context, scope Scope, checksum string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, filepath, filetype, filesize, scope, uploadedAt, lastIndexed, checksum, metadataJson
		 FROM documents WHERE checksum = ? AND scope = ?`, checksum, string(scope))
	return scanDocument(row)
}

func (s *SQLiteMetadataStore) GetDocumentByPath(ctx context.Context, filePath string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, filepath, filetype, filesize, scope, uploadedAt, lastIndexed, checksum, metadataJson
		 FROM documents WHERE filepath = ?`, filePath)
	return scanDocument(row)
}

func (s *SQLiteMetadataStore) GetDocument(ctx context.Context, docID string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, filepath, filetype, filesize, scope, uploadedAt, lastIndexed, checksum, metadataJson
		 FROM documents WHERE id = ?`, docID)
	return scanDocument(row)
}

func scanDocument(row *sql.Row) (*Document, error) {
	var (
		d                          Document
		fileType, scope            string
		uploadedAt, lastIndexed    int64
	)
	err := row.Scan(&d.ID, &d.Filename, &d.FilePath, &fileType, &d.FileSize, &scope,
		&uploadedAt, &lastIndexed, &d.Checksum, &d.MetadataJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	d.FileType = FileFormat(fileType)
	d.Scope = Scope(scope)
	d.UploadedAt = time.Unix(uploadedAt, 0).UTC()
	d.LastIndexed = time.Unix(lastIndexed, 0).UTC()
	return &d, nil
}

func (s *SQLiteMetadataStore) TouchLastIndexed(ctx context.Context, docID string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE documents SET lastIndexed = ? WHERE id = ?`, when.Unix(), docID)
	if err != nil {
		return ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	return nil
}

// DeleteDocument removes the document row; ON DELETE CASCADE removes its
// chunks and any policy_sections.
func (s *SQLiteMetadataStore) DeleteDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID)
	if err != nil {
		return ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	return nil
}

func (s *SQLiteMetadataStore) GetChunks(ctx context.Context, chunkIDs []string) ([]*Chunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := make([]string, len(chunkIDs))
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT chunkId, docId, text, chunkIndex, tokens FROM chunks WHERE chunkId IN (%s)`,
		strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	defer rows.Close()

	byID := make(map[string]*Chunk, len(chunkIDs))
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ChunkID, &c.DocID, &c.Text, &c.ChunkIndex, &c.Tokens); err != nil {
			return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
		}
		byID[c.ChunkID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}

	out := make([]*Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *SQLiteMetadataStore) CountDocumentsByType(ctx context.Context, scope Scope) (map[FileFormat]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT filetype, COUNT(*) FROM documents WHERE scope = ? GROUP BY filetype`, string(scope))
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	defer rows.Close()

	out := make(map[FileFormat]int)
	for rows.Next() {
		var ft string
		var n int
		if err := rows.Scan(&ft, &n); err != nil {
			return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
		}
		out[FileFormat(ft)] = n
	}
	return out, rows.Err()
}

func (s *SQLiteMetadataStore) GetDocumentsByScope(ctx context.Context, scope Scope) ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, filepath, filetype, filesize, scope, uploadedAt, lastIndexed, checksum, metadataJson
		 FROM documents WHERE scope = ? ORDER BY uploadedAt`, string(scope))
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var (
			d                       Document
			fileType, sc            string
			uploadedAt, lastIndexed int64
		)
		if err := rows.Scan(&d.ID, &d.Filename, &d.FilePath, &fileType, &d.FileSize, &sc,
			&uploadedAt, &lastIndexed, &d.Checksum, &d.MetadataJSON); err != nil {
			return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
		}
		d.FileType = FileFormat(fileType)
		d.Scope = Scope(sc)
		d.UploadedAt = time.Unix(uploadedAt, 0).UTC()
		d.LastIndexed = time.Unix(lastIndexed, 0).UTC()
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// GetChunkIDsByScope returns every chunk id belonging to a document
// indexed in scope.
func (s *SQLiteMetadataStore) GetChunkIDsByScope(ctx context.Context, scope Scope) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.chunkId FROM chunks c JOIN documents d ON c.docId = d.id WHERE d.scope = ?`, string(scope))
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteMetadataStore) IsDocumentIndexed(ctx context.Context, scope Scope, checksum string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE scope = ? AND checksum = ?`, string(scope), checksum).Scan(&n)
	if err != nil {
		return false, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	return n > 0, nil
}

func (s *SQLiteMetadataStore) AppendSearchHistory(ctx context.Context, entry *SearchHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_history (query, scope, timestamp, resultCount, responseTime) VALUES (?, ?, ?, ?, ?)`,
		entry.Query, string(entry.Scope), entry.Timestamp.Unix(), entry.ResultCount, entry.ResponseTime.Milliseconds(),
	)
	if err != nil {
		return ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	return nil
}

func (s *SQLiteMetadataStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{
		ByFileType: make(map[FileFormat]int),
		ByScope:    make(map[Scope]int),
		SizeByType: make(map[FileFormat]int64),
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.DocumentCount); err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.ChunkCount); err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}

	typeRows, err := s.db.QueryContext(ctx, `SELECT filetype, COUNT(*), COALESCE(SUM(filesize), 0) FROM documents GROUP BY filetype`)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var ft string
		var n int
		var size int64
		if err := typeRows.Scan(&ft, &n, &size); err != nil {
			return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
		}
		stats.ByFileType[FileFormat(ft)] = n
		stats.SizeByType[FileFormat(ft)] = size
		stats.TotalSize += size
	}

	scopeRows, err := s.db.QueryContext(ctx, `SELECT scope, COUNT(*) FROM documents GROUP BY scope`)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	defer scopeRows.Close()
	for scopeRows.Next() {
		var sc string
		var n int
		if err := scopeRows.Scan(&sc, &n); err != nil {
			return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
		}
		stats.ByScope[Scope(sc)] = n
	}

	if stats.ChunkCount > 0 {
		var totalTokens int64
		if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(tokens), 0) FROM chunks`).Scan(&totalTokens); err != nil {
			return nil, ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
		}
		stats.AvgTokens = float64(totalTokens) / float64(stats.ChunkCount)
	}

	return stats, nil
}

func (s *SQLiteMetadataStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"search_history", "policy_sections", "chunks", "documents"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return ragerr.Wrap(ragerr.ErrCodeStoreInconsistent, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
