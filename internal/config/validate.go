package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for internally inconsistent or
// out-of-range values. Load calls this after applying all override
// layers.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("ragChunkSize must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 {
		return fmt.Errorf("ragChunkOverlap must be non-negative, got %d", c.Chunking.ChunkOverlap)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("ragChunkOverlap (%d) must be smaller than ragChunkSize (%d)", c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}

	validScopes := map[StorageScope]bool{ScopeGlobal: true, ScopeWorkspace: true, ScopeBoth: true}
	if !validScopes[c.Storage.StorageScope] {
		return fmt.Errorf("ragStorageScope must be 'global', 'workspace', or 'both', got %s", c.Storage.StorageScope)
	}
	if c.Storage.VectorBackend != VectorBackendHNSW {
		return fmt.Errorf("ragVectorBackend must be 'hnsw', got %s", c.Storage.VectorBackend)
	}
	if c.Storage.MaxFileSizeMiB <= 0 {
		return fmt.Errorf("ragMaxFileSizeMiB must be positive, got %d", c.Storage.MaxFileSizeMiB)
	}

	validBackends := map[EmbeddingBackend]bool{
		EmbeddingBackendStatic: true,
		EmbeddingBackendRemote: true,
		EmbeddingBackendLocal:  true,
	}
	if !validBackends[c.Embeddings.Backend] {
		return fmt.Errorf("ragEmbeddingBackend must be 'static', 'remote', or 'local', got %s", c.Embeddings.Backend)
	}
	if c.Embeddings.Backend == EmbeddingBackendRemote && c.Embeddings.RemoteAPIKey == "" {
		return fmt.Errorf("ragEmbeddingBackend=remote requires an API key (DOCRAG_REMOTE_API_KEY)")
	}
	if c.Embeddings.Backend == EmbeddingBackendLocal && c.Embeddings.LocalLibraryPath == "" {
		return fmt.Errorf("ragEmbeddingBackend=local requires DOCRAG_LOCAL_LIBRARY_PATH")
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings batchSize must be positive, got %d", c.Embeddings.BatchSize)
	}

	if c.Search.SearchLimit <= 0 {
		return fmt.Errorf("ragSearchLimit must be positive, got %d", c.Search.SearchLimit)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}
