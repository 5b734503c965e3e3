package rpc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docrag/engine/pkg/version"
)

// Server is the MCP server bridging the editor's privileged process to
// the index and retrieval orchestrators over stdio.
type Server struct {
	mcp    *mcp.Server
	engine *Engine
	logger *slog.Logger
}

// NewServer creates a new MCP server bound to engine. The engine need not
// be initialized yet; the caller is expected to call initialize over the
// wire before dispatching any other tool.
func NewServer(engine *Engine, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{engine: engine, logger: logger}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "docrag-engine",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "initialize",
		Description: "Load the embedding backend, ensure on-disk directories exist, and open the metadata and vector stores. Idempotent.",
	}, s.mcpInitializeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "indexDocument",
		Description: "Ingest one document: extract, chunk, embed, and persist it in the given scope. Dedups by content checksum.",
	}, s.mcpIndexDocumentHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Retrieve the most relevant chunks for a query and assemble a context pack with source attributions.",
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "getStats",
		Description: "Report aggregate document and chunk counts across every scope.",
	}, s.mcpGetStatsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "deleteDocument",
		Description: "Remove a document and its chunks from both the metadata and vector stores.",
	}, s.mcpDeleteDocumentHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "isDocumentIndexed",
		Description: "Check whether a file's current contents are already indexed in scope, by content checksum.",
	}, s.mcpIsDocumentIndexedHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "getDocumentsByType",
		Description: "List every document indexed in scope.",
	}, s.mcpGetDocumentsByTypeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clearAllEmbeddings",
		Description: "Purge both stores entirely. Use after a backend dimension change or on explicit user request.",
	}, s.mcpClearAllEmbeddingsHandler)

	s.logger.Debug("registered MCP tools", slog.Int("count", 8))
}

func (s *Server) mcpInitializeHandler(ctx context.Context, _ *mcp.CallToolRequest, input InitializeInput) (
	*mcp.CallToolResult, StatusResult, error,
) {
	if err := s.engine.Initialize(ctx, input.WorkspaceID, input.Credential); err != nil {
		return nil, StatusResult{Success: false, Message: messageFor(err)}, nil
	}
	return nil, StatusResult{Success: true, Message: "initialized"}, nil
}

func (s *Server) mcpIndexDocumentHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexDocumentInput) (
	*mcp.CallToolResult, IndexDocumentOutput, error,
) {
	return nil, s.engine.IndexDocument(ctx, input), nil
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	return nil, s.engine.Search(ctx, input), nil
}

func (s *Server) mcpGetStatsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ GetStatsInput) (
	*mcp.CallToolResult, GetStatsOutput, error,
) {
	out, err := s.engine.GetStats(ctx)
	if err != nil {
		return nil, GetStatsOutput{}, nil
	}
	return nil, out, nil
}

func (s *Server) mcpDeleteDocumentHandler(ctx context.Context, _ *mcp.CallToolRequest, input DeleteDocumentInput) (
	*mcp.CallToolResult, StatusResult, error,
) {
	return nil, s.engine.DeleteDocument(ctx, input), nil
}

func (s *Server) mcpIsDocumentIndexedHandler(ctx context.Context, _ *mcp.CallToolRequest, input IsDocumentIndexedInput) (
	*mcp.CallToolResult, IsDocumentIndexedOutput, error,
) {
	out, err := s.engine.IsDocumentIndexed(ctx, input)
	if err != nil {
		return nil, IsDocumentIndexedOutput{Indexed: false}, nil
	}
	return nil, out, nil
}

func (s *Server) mcpGetDocumentsByTypeHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetDocumentsByTypeInput) (
	*mcp.CallToolResult, GetDocumentsByTypeOutput, error,
) {
	out, err := s.engine.GetDocumentsByType(ctx, input)
	if err != nil {
		return nil, GetDocumentsByTypeOutput{}, nil
	}
	return nil, out, nil
}

func (s *Server) mcpClearAllEmbeddingsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ClearAllEmbeddingsInput) (
	*mcp.CallToolResult, StatusResult, error,
) {
	return nil, s.engine.ClearAllEmbeddings(ctx), nil
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped gracefully")
	return nil
}

// Close releases the engine's resources.
func (s *Server) Close() error {
	return s.engine.Close()
}
