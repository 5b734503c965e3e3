package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docrag/engine/internal/config"
)

func TestNewServerRejectsNilEngine(t *testing.T) {
	_, err := NewServer(nil, nil)
	require.Error(t, err)
}

func TestNewServerRegistersTools(t *testing.T) {
	e := NewEngine(config.NewConfig(), nil)
	s, err := NewServer(e, nil)
	require.NoError(t, err)
	assert.NotNil(t, s.MCPServer())
}

func TestMcpHandlersDispatchToEngine(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("USERPROFILE", root)

	cfg := config.NewConfig()
	e := NewEngine(cfg, nil)
	s, err := NewServer(e, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	_, initOut, err := s.mcpInitializeHandler(ctx, nil, InitializeInput{WorkspaceID: "ws"})
	require.NoError(t, err)
	assert.True(t, initOut.Success)

	_, statsOut, err := s.mcpGetStatsHandler(ctx, nil, GetStatsInput{})
	require.NoError(t, err)
	assert.Equal(t, 0, statsOut.TotalDocuments)

	_, clearOut, err := s.mcpClearAllEmbeddingsHandler(ctx, nil, ClearAllEmbeddingsInput{})
	require.NoError(t, err)
	assert.True(t, clearOut.Success)
}
