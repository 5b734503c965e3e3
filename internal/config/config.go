// Package config loads and validates the docrag engine's configuration.
// It mirrors the settings table in the specification's configuration
// section, layered over sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageScope selects which path-resolver roots are active for indexing
// and retrieval.
type StorageScope string

const (
	ScopeGlobal    StorageScope = "global"
	ScopeWorkspace StorageScope = "workspace"
	ScopeBoth      StorageScope = "both"
)

// EmbeddingBackend selects the concrete embedding adapter.
type EmbeddingBackend string

const (
	EmbeddingBackendStatic EmbeddingBackend = "static"
	EmbeddingBackendRemote EmbeddingBackend = "remote"
	EmbeddingBackendLocal  EmbeddingBackend = "local"
)

// VectorBackend selects the concrete vector store implementation.
type VectorBackend string

const (
	VectorBackendHNSW VectorBackend = "hnsw"
)

// Config is the complete docrag engine configuration.
type Config struct {
	Version int `yaml:"version" json:"version"`

	// RagEnabled gates the entire subsystem. When false, the RPC
	// boundary rejects index/search calls with a disabled-feature error
	// instead of dispatching them.
	RagEnabled bool `yaml:"ragEnabled" json:"ragEnabled"`

	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// ChunkingConfig configures the sentence chunker (C3).
type ChunkingConfig struct {
	// ChunkSize is the target chunk length in characters (default: 500).
	ChunkSize int `yaml:"ragChunkSize" json:"ragChunkSize"`
	// ChunkOverlap is the word-count overlap between adjacent chunks
	// (default: 50).
	ChunkOverlap int `yaml:"ragChunkOverlap" json:"ragChunkOverlap"`
}

// StorageConfig configures where the metadata and vector stores live and
// which backend serves vectors.
type StorageConfig struct {
	// StorageScope is "global", "workspace", or "both". Determines which
	// path-resolver roots are used.
	StorageScope StorageScope `yaml:"ragStorageScope" json:"ragStorageScope"`
	// VectorBackend selects the concrete vector store implementation.
	VectorBackend VectorBackend `yaml:"ragVectorBackend" json:"ragVectorBackend"`
	// MaxFileSizeMiB is validated as positive (default: 100). Ingest does
	// not read it: the extractor and the index orchestrator reject sources
	// above a fixed 100 MiB whatever this is set to.
	MaxFileSizeMiB int `yaml:"ragMaxFileSizeMiB" json:"ragMaxFileSizeMiB"`
	// PolicySectionsEnabled is the dormant policy_sections feature flag.
	// Nothing reads it: the data model always carries the table and no
	// extraction path populates it, whatever its value. Default: false.
	PolicySectionsEnabled bool `yaml:"ragPolicySectionsEnabled" json:"ragPolicySectionsEnabled"`
}

// EmbeddingsConfig configures the embedding adapter (C4).
type EmbeddingsConfig struct {
	// Backend selects remote, local, or static.
	Backend EmbeddingBackend `yaml:"ragEmbeddingBackend" json:"ragEmbeddingBackend"`
	// Dimensions is the embedding vector width. Static and local backends
	// fix this; the remote backend reports this value (1536 when unset)
	// rather than reading the width from the API response.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// BatchSize is validated as positive but not read by the ingest
	// pipeline, which embeds chunks in fixed batches of 50.
	BatchSize int `yaml:"batchSize" json:"batchSize"`
	// CacheSize is the number of query embeddings kept in the LRU cache.
	CacheSize int `yaml:"cacheSize" json:"cacheSize"`

	// Remote backend settings (sashabaranov/go-openai client).
	RemoteBaseURL string `yaml:"remoteBaseURL" json:"remoteBaseURL"`
	RemoteAPIKey  string `yaml:"remoteAPIKey" json:"-"`
	RemoteModel   string `yaml:"remoteModel" json:"remoteModel"`
	RemoteTimeout time.Duration `yaml:"remoteTimeout" json:"remoteTimeout"`

	// Local backend settings (purego dlopen of a bundled shared library).
	LocalLibraryPath string `yaml:"localLibraryPath" json:"localLibraryPath"`
	ModelDownloadTimeout time.Duration `yaml:"modelDownloadTimeout" json:"modelDownloadTimeout"`
}

// WatchConfig configures the workspace watcher (C9).
type WatchConfig struct {
	// PolicyFolderName is the folder watched for policy documents
	// (default: "policy-manuals").
	PolicyFolderName string `yaml:"ragPolicyFolderName" json:"ragPolicyFolderName"`
	// WatchPolicyFolder enables the file watcher.
	WatchPolicyFolder bool `yaml:"ragWatchPolicyFolder" json:"ragWatchPolicyFolder"`
	// AutoIndexPolicyFolder enables initial enumeration on workspace
	// load.
	AutoIndexPolicyFolder bool `yaml:"ragAutoIndexPolicyFolder" json:"ragAutoIndexPolicyFolder"`
	// Debounce is the quiet period before a batch of filesystem events
	// is dispatched.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// SearchConfig configures retrieval (C8).
type SearchConfig struct {
	// SearchLimit is the default and maximum topK (default: 5).
	SearchLimit int `yaml:"ragSearchLimit" json:"ragSearchLimit"`
	// ContextCharCap bounds the total size of an assembled ContextPack.
	ContextCharCap int `yaml:"contextCharCap" json:"contextCharCap"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level         string `yaml:"level" json:"level"`
	FilePath      string `yaml:"filePath" json:"filePath"`
	MaxSizeMB     int    `yaml:"maxSizeMB" json:"maxSizeMB"`
	MaxFiles      int    `yaml:"maxFiles" json:"maxFiles"`
	WriteToStderr bool   `yaml:"writeToStderr" json:"writeToStderr"`
}

// NewConfig creates a new Config populated with engine defaults.
func NewConfig() *Config {
	return &Config{
		Version:    1,
		RagEnabled: true,
		Chunking: ChunkingConfig{
			ChunkSize:    500,
			ChunkOverlap: 50,
		},
		Storage: StorageConfig{
			StorageScope:           ScopeWorkspace,
			VectorBackend:          VectorBackendHNSW,
			MaxFileSizeMiB:         100,
			PolicySectionsEnabled:  false,
		},
		Embeddings: EmbeddingsConfig{
			Backend:              EmbeddingBackendStatic,
			Dimensions:           384,
			BatchSize:            32,
			CacheSize:            256,
			RemoteBaseURL:        "",
			RemoteModel:          "text-embedding-3-small",
			RemoteTimeout:        30 * time.Second,
			LocalLibraryPath:     "",
			ModelDownloadTimeout: 10 * time.Minute,
		},
		Watch: WatchConfig{
			PolicyFolderName:      "policy-manuals",
			WatchPolicyFolder:     true,
			AutoIndexPolicyFolder: true,
			Debounce:              500 * time.Millisecond,
		},
		Search: SearchConfig{
			SearchLimit:    5,
			ContextCharCap: 8000,
		},
		Logging: LoggingConfig{
			Level:         "info",
			MaxSizeMB:     10,
			MaxFiles:      5,
			WriteToStderr: true,
		},
	}
}

// Load loads configuration for the given workspace root, applying
// overrides in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/docrag/config.yaml)
//  3. Workspace config (.docrag.yaml in the workspace root)
//  4. Environment variables (DOCRAG_*)
func Load(workspaceDir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(workspaceDir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml")
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// loadFromFile attempts to load configuration from .docrag.yaml or
// .docrag.yml in the workspace root.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".docrag.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".docrag.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Chunking.ChunkSize != 0 {
		c.Chunking.ChunkSize = other.Chunking.ChunkSize
	}
	if other.Chunking.ChunkOverlap != 0 {
		c.Chunking.ChunkOverlap = other.Chunking.ChunkOverlap
	}
	if other.Storage.StorageScope != "" {
		c.Storage.StorageScope = other.Storage.StorageScope
	}
	if other.Storage.VectorBackend != "" {
		c.Storage.VectorBackend = other.Storage.VectorBackend
	}
	if other.Storage.MaxFileSizeMiB != 0 {
		c.Storage.MaxFileSizeMiB = other.Storage.MaxFileSizeMiB
	}
	c.Storage.PolicySectionsEnabled = other.Storage.PolicySectionsEnabled || c.Storage.PolicySectionsEnabled
	if other.Embeddings.Backend != "" {
		c.Embeddings.Backend = other.Embeddings.Backend
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}
	if other.Embeddings.RemoteBaseURL != "" {
		c.Embeddings.RemoteBaseURL = other.Embeddings.RemoteBaseURL
	}
	if other.Embeddings.RemoteAPIKey != "" {
		c.Embeddings.RemoteAPIKey = other.Embeddings.RemoteAPIKey
	}
	if other.Embeddings.RemoteModel != "" {
		c.Embeddings.RemoteModel = other.Embeddings.RemoteModel
	}
	if other.Embeddings.RemoteTimeout != 0 {
		c.Embeddings.RemoteTimeout = other.Embeddings.RemoteTimeout
	}
	if other.Embeddings.LocalLibraryPath != "" {
		c.Embeddings.LocalLibraryPath = other.Embeddings.LocalLibraryPath
	}
	if other.Embeddings.ModelDownloadTimeout != 0 {
		c.Embeddings.ModelDownloadTimeout = other.Embeddings.ModelDownloadTimeout
	}
	if other.Watch.PolicyFolderName != "" {
		c.Watch.PolicyFolderName = other.Watch.PolicyFolderName
	}
	c.Watch.WatchPolicyFolder = other.Watch.WatchPolicyFolder || c.Watch.WatchPolicyFolder
	c.Watch.AutoIndexPolicyFolder = other.Watch.AutoIndexPolicyFolder || c.Watch.AutoIndexPolicyFolder
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Search.SearchLimit != 0 {
		c.Search.SearchLimit = other.Search.SearchLimit
	}
	if other.Search.ContextCharCap != 0 {
		c.Search.ContextCharCap = other.Search.ContextCharCap
	}
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// defaultIndexWorkers returns the host CPU count. It is not the engine's
// ingest concurrency (the index orchestrator runs one ingest at a time),
// and nothing in this module calls it.
func defaultIndexWorkers() int {
	return runtime.NumCPU()
}
