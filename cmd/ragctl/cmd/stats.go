package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Report aggregate document and chunk counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd)
		},
	}
}

func runStats(cmd *cobra.Command) error {
	ctx := cmd.Context()
	engine, err := openEngine(ctx)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer engine.Close()

	out, err := engine.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Documents: %d (%d bytes)\n", out.TotalDocuments, out.TotalSize)
	fmt.Fprintf(w, "Chunks:    %d (avg %.1f tokens)\n", out.Chunks.TotalChunks, out.Chunks.AvgTokens)
	if len(out.Documents) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "By filetype:")
		for _, d := range out.Documents {
			fmt.Fprintf(w, "  %-8s %4d docs  %8d bytes\n", d.FileType, d.TypeCount, d.TotalSize)
		}
	}
	return nil
}
