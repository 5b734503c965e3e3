package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Purge both the metadata and vector stores entirely",
		Long:  `Drops every document, chunk, and embedding. Use after a backend dimension change or to reset a workspace.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}
			return runClear(cmd)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the destructive purge")
	return cmd
}

func runClear(cmd *cobra.Command) error {
	ctx := cmd.Context()
	engine, err := openEngine(ctx)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer engine.Close()

	out := engine.ClearAllEmbeddings(ctx)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if !out.Success {
		fmt.Fprintf(cmd.OutOrStdout(), "FAILED: %s\n", out.Message)
		return fmt.Errorf("clear failed: %s", out.Message)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.Message)
	return nil
}
