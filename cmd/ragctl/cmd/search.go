package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docrag/engine/internal/rpc"
)

func newSearchCmd() *cobra.Command {
	var scope string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents and assemble a context pack",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), scope, limit)
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "both", "policy_manual, workspace_docs, or both")
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum attributions to return")
	return cmd
}

func runSearch(cmd *cobra.Command, query, scope string, limit int) error {
	ctx := cmd.Context()
	engine, err := openEngine(ctx)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer engine.Close()

	out := engine.Search(ctx, rpc.SearchInput{Query: query, Scope: scope, Limit: limit})

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d results in %dms\n\n", out.TotalResults, out.ResponseTimeMS)
	for i, a := range out.Attributions {
		fmt.Fprintf(w, "%d. %s (%s) score=%.3f\n", i+1, a.Filename, a.RangeHint, a.Score)
	}
	if out.AnswerContext != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, out.AnswerContext)
	}
	return nil
}
