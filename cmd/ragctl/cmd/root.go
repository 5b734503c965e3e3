// Package cmd provides the CLI commands for ragctl.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docrag/engine/internal/config"
	"github.com/docrag/engine/internal/rpc"
	"github.com/docrag/engine/pkg/version"
)

var (
	workspaceRoot string
	workspaceID   string
	jsonOutput    bool
)

// NewRootCmd creates the root command for the ragctl CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ragctl",
		Short:   "Operate and inspect the docrag indexing/retrieval engine",
		Version: version.Version,
	}
	cmd.SetVersionTemplate("ragctl version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&workspaceRoot, "workspace-root", ".", "workspace directory to operate on")
	cmd.PersistentFlags().StringVar(&workspaceID, "workspace-id", "default", "workspace identifier for per-workspace storage paths")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output machine-readable JSON")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newWatchCmd())

	return cmd
}

// Execute runs the root command with a context canceled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// openEngine loads configuration for workspaceRoot and returns an
// initialized engine. Callers must Close it.
func openEngine(ctx context.Context) (*rpc.Engine, error) {
	cfg, err := config.Load(workspaceRoot)
	if err != nil {
		return nil, err
	}
	engine := rpc.NewEngine(cfg, slog.Default())
	if err := engine.Initialize(ctx, workspaceID, ""); err != nil {
		return nil, err
	}
	return engine, nil
}
