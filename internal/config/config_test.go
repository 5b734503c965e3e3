package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.True(t, cfg.RagEnabled)
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, ScopeWorkspace, cfg.Storage.StorageScope)
	assert.Equal(t, VectorBackendHNSW, cfg.Storage.VectorBackend)
	assert.Equal(t, 100, cfg.Storage.MaxFileSizeMiB)
	assert.False(t, cfg.Storage.PolicySectionsEnabled)
	assert.Equal(t, EmbeddingBackendStatic, cfg.Embeddings.Backend)
	assert.Equal(t, 5, cfg.Search.SearchLimit)
	assert.Equal(t, "policy-manuals", cfg.Watch.PolicyFolderName)
	assert.True(t, cfg.Watch.WatchPolicyFolder)
	assert.True(t, cfg.Watch.AutoIndexPolicyFolder)

	require.NoError(t, cfg.Validate())
}

func TestLoad_WorkspaceFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
ragEnabled: true
chunking:
  ragChunkSize: 800
  ragChunkOverlap: 80
storage:
  ragStorageScope: global
search:
  ragSearchLimit: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docrag.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Chunking.ChunkSize)
	assert.Equal(t, 80, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, ScopeGlobal, cfg.Storage.StorageScope)
	assert.Equal(t, 10, cfg.Search.SearchLimit)
}

func TestLoad_EnvOverridesTakePrecedenceOverFile(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
chunking:
  ragChunkSize: 800
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docrag.yaml"), []byte(yamlContent), 0o644))

	t.Setenv("DOCRAG_CHUNK_SIZE", "1200")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 1200, cfg.Chunking.ChunkSize)
}

func TestValidate_RejectsOverlapGreaterThanChunkSize(t *testing.T) {
	cfg := NewConfig()
	cfg.Chunking.ChunkSize = 100
	cfg.Chunking.ChunkOverlap = 150

	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidate_RemoteBackendRequiresAPIKey(t *testing.T) {
	cfg := NewConfig()
	cfg.Embeddings.Backend = EmbeddingBackendRemote
	cfg.Embeddings.RemoteAPIKey = ""

	err := cfg.Validate()
	assert.Error(t, err)

	cfg.Embeddings.RemoteAPIKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_LocalBackendRequiresLibraryPath(t *testing.T) {
	cfg := NewConfig()
	cfg.Embeddings.Backend = EmbeddingBackendLocal
	cfg.Embeddings.LocalLibraryPath = ""

	err := cfg.Validate()
	assert.Error(t, err)
}

func TestApplyEnvOverrides_BoolParsing(t *testing.T) {
	t.Setenv("DOCRAG_WATCH_POLICY_FOLDER", "false")
	t.Setenv("DOCRAG_AUTO_INDEX_POLICY_FOLDER", "0")

	cfg := NewConfig()
	cfg.applyEnvOverrides()

	assert.False(t, cfg.Watch.WatchPolicyFolder)
	assert.False(t, cfg.Watch.AutoIndexPolicyFolder)
}

func TestApplyEnvOverrides_DurationParsing(t *testing.T) {
	t.Setenv("DOCRAG_WATCH_DEBOUNCE", "750ms")

	cfg := NewConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, 750*time.Millisecond, cfg.Watch.Debounce)
}
