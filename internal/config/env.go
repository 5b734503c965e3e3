package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies DOCRAG_* environment variable overrides. This
// is the highest-precedence layer in Load.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCRAG_ENABLED"); v != "" {
		c.RagEnabled = parseBool(v, c.RagEnabled)
	}

	if v := os.Getenv("DOCRAG_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunking.ChunkSize = n
		}
	}
	if v := os.Getenv("DOCRAG_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Chunking.ChunkOverlap = n
		}
	}

	if v := os.Getenv("DOCRAG_STORAGE_SCOPE"); v != "" {
		c.Storage.StorageScope = StorageScope(v)
	}
	if v := os.Getenv("DOCRAG_VECTOR_BACKEND"); v != "" {
		c.Storage.VectorBackend = VectorBackend(v)
	}
	if v := os.Getenv("DOCRAG_MAX_FILE_SIZE_MIB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Storage.MaxFileSizeMiB = n
		}
	}
	if v := os.Getenv("DOCRAG_POLICY_SECTIONS_ENABLED"); v != "" {
		c.Storage.PolicySectionsEnabled = parseBool(v, c.Storage.PolicySectionsEnabled)
	}

	if v := os.Getenv("DOCRAG_EMBEDDING_BACKEND"); v != "" {
		c.Embeddings.Backend = EmbeddingBackend(v)
	}
	if v := os.Getenv("DOCRAG_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embeddings.Dimensions = n
		}
	}
	if v := os.Getenv("DOCRAG_EMBEDDING_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embeddings.BatchSize = n
		}
	}
	if v := os.Getenv("DOCRAG_REMOTE_BASE_URL"); v != "" {
		c.Embeddings.RemoteBaseURL = v
	}
	if v := os.Getenv("DOCRAG_REMOTE_API_KEY"); v != "" {
		c.Embeddings.RemoteAPIKey = v
	}
	if v := os.Getenv("DOCRAG_REMOTE_MODEL"); v != "" {
		c.Embeddings.RemoteModel = v
	}
	if v := os.Getenv("DOCRAG_LOCAL_LIBRARY_PATH"); v != "" {
		c.Embeddings.LocalLibraryPath = v
	}

	if v := os.Getenv("DOCRAG_POLICY_FOLDER_NAME"); v != "" {
		c.Watch.PolicyFolderName = v
	}
	if v := os.Getenv("DOCRAG_WATCH_POLICY_FOLDER"); v != "" {
		c.Watch.WatchPolicyFolder = parseBool(v, c.Watch.WatchPolicyFolder)
	}
	if v := os.Getenv("DOCRAG_AUTO_INDEX_POLICY_FOLDER"); v != "" {
		c.Watch.AutoIndexPolicyFolder = parseBool(v, c.Watch.AutoIndexPolicyFolder)
	}
	if v := os.Getenv("DOCRAG_WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Watch.Debounce = d
		}
	}

	if v := os.Getenv("DOCRAG_SEARCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.SearchLimit = n
		}
	}

	if v := os.Getenv("DOCRAG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DOCRAG_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
}

func parseBool(s string, fallback bool) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return fallback
	}
}
