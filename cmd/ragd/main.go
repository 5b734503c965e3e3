// Command ragd runs the indexing/retrieval engine as an MCP server over
// stdio. The editor's privileged process spawns one ragd per workspace
// and speaks the initialize/indexDocument/search/... tool protocol to it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/docrag/engine/internal/config"
	"github.com/docrag/engine/internal/logging"
	"github.com/docrag/engine/internal/rpc"
	"github.com/docrag/engine/pkg/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ragd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		workspaceRoot = flag.String("workspace-root", ".", "workspace directory this engine instance serves")
		workspaceID   = flag.String("workspace-id", "", "stable identifier for the workspace, used for per-workspace storage paths")
		debug         = flag.Bool("debug", false, "enable debug-level logging")
		showVersion   = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return nil
	}

	logCfg := logging.DefaultConfig()
	if *debug {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	cfg, err := config.Load(*workspaceRoot)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := rpc.NewEngine(cfg, logger)
	if err := engine.Initialize(ctx, *workspaceID, os.Getenv("DOCRAG_EMBEDDING_CREDENTIAL")); err != nil {
		logger.Warn("initial engine setup failed, will retry on first initialize call", slog.String("error", err.Error()))
	}
	defer engine.Close()

	server, err := rpc.NewServer(engine, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	logger.Info("ragd starting",
		slog.String("version", version.Version),
		slog.String("workspaceRoot", *workspaceRoot),
		slog.String("workspaceId", *workspaceID),
	)
	return server.Serve(ctx)
}
