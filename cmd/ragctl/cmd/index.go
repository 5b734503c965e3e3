package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docrag/engine/internal/rpc"
)

func newIndexCmd() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Index one document into the given scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args[0], scope)
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "workspace_docs", "policy_manual or workspace_docs")
	return cmd
}

func runIndex(cmd *cobra.Command, path, scope string) error {
	ctx := cmd.Context()
	engine, err := openEngine(ctx)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer engine.Close()

	out := engine.IndexDocument(ctx, rpc.IndexDocumentInput{
		URI:         path,
		Scope:       scope,
		WorkspaceID: workspaceID,
	})

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if !out.Success {
		fmt.Fprintf(cmd.OutOrStdout(), "FAILED: %s\n", out.Message)
		return fmt.Errorf("index failed: %s", out.Message)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %s as %s\n", path, out.DocID)
	return nil
}
