package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docrag/engine/internal/store"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check cross-store consistency between the metadata and vector stores",
		Long: `Verify, for every chunk indexed in the metadata store, that a
matching vector exists in the vector store's same scope, and that no
vector store entry survives without a metadata row. A mismatch means
the two stores drifted out of sync, usually from a crash mid-ingest.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

// doctorReport is the JSON shape for `ragctl doctor --json`.
type doctorReport struct {
	Scope          string   `json:"scope"`
	MetadataChunks int      `json:"metadataChunks"`
	VectorChunks   int      `json:"vectorChunks"`
	MissingVectors []string `json:"missingVectors,omitempty"`
	OrphanVectors  []string `json:"orphanVectors,omitempty"`
	Consistent     bool     `json:"consistent"`
}

func runDoctor(cmd *cobra.Command) error {
	ctx := cmd.Context()
	engine, err := openEngine(ctx)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer engine.Close()

	metadata := engine.Metadata()
	vectors := engine.Vectors()

	reports := make([]doctorReport, 0, 2)
	anyInconsistent := false

	for _, scope := range []store.Scope{store.ScopePolicyManual, store.ScopeWorkspaceDocs} {
		metaIDs, err := metadata.GetChunkIDsByScope(ctx, scope)
		if err != nil {
			return fmt.Errorf("read metadata chunks for %s: %w", scope, err)
		}
		metaSet := make(map[string]bool, len(metaIDs))
		for _, id := range metaIDs {
			metaSet[id] = true
		}

		vecIDs := vectors.ChunkIDs(scope)
		vecSet := make(map[string]bool, len(vecIDs))
		for _, id := range vecIDs {
			vecSet[id] = true
		}

		report := doctorReport{Scope: string(scope), MetadataChunks: len(metaIDs), VectorChunks: len(vecIDs)}
		for id := range metaSet {
			if !vecSet[id] {
				report.MissingVectors = append(report.MissingVectors, id)
			}
		}
		for id := range vecSet {
			if !metaSet[id] {
				report.OrphanVectors = append(report.OrphanVectors, id)
			}
		}
		report.Consistent = len(report.MissingVectors) == 0 && len(report.OrphanVectors) == 0
		if !report.Consistent {
			anyInconsistent = true
		}
		reports = append(reports, report)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, r := range reports {
			status := "OK"
			if !r.Consistent {
				status = "INCONSISTENT"
			}
			fmt.Fprintf(w, "%-15s %s (metadata=%d vectors=%d missing=%d orphan=%d)\n",
				r.Scope, status, r.MetadataChunks, r.VectorChunks, len(r.MissingVectors), len(r.OrphanVectors))
		}
	}

	if anyInconsistent {
		return fmt.Errorf("cross-store consistency check failed")
	}
	return nil
}
