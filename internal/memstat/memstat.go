// Package memstat logs Go heap usage at pipeline stage boundaries so the
// indexing orchestrator can attribute memory pressure to a specific step
// (start, post-extract, post-chunk, or post-batch) instead of guessing from a single
// end-of-run sample.
package memstat

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
)

// Snapshot is a point-in-time view of the Go runtime's heap usage.
type Snapshot struct {
	HeapAllocBytes uint64
	HeapSysBytes   uint64
	HeapObjects    uint64
	NumGoroutine   int
}

// Read captures a Snapshot of the current heap state.
func Read() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Snapshot{
		HeapAllocBytes: m.HeapAlloc,
		HeapSysBytes:   m.HeapSys,
		HeapObjects:    m.HeapObjects,
		NumGoroutine:   runtime.NumGoroutine(),
	}
}

// LogStage logs a Snapshot tagged with the pipeline stage it was taken at,
// e.g. "start", "post-extract", "post-chunk", "post-batch".
func LogStage(ctx context.Context, logger *slog.Logger, docID, stage string) {
	if logger == nil {
		return
	}
	s := Read()
	logger.LogAttrs(ctx, slog.LevelDebug, "heap usage",
		slog.String("docId", docID),
		slog.String("stage", stage),
		slog.String("heapAlloc", FormatBytes(s.HeapAllocBytes)),
		slog.String("heapSys", FormatBytes(s.HeapSysBytes)),
		slog.Uint64("heapObjects", s.HeapObjects),
		slog.Int("goroutines", s.NumGoroutine),
	)
}

// FormatBytes formats bytes into human-readable form for log lines.
func FormatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
