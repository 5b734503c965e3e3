// Package embed provides the pluggable embedding adapter: a static
// deterministic fallback, a remote OpenAI-compatible backend, and a
// local native backend loaded via dlopen, all behind one Embedder
// interface plus an LRU query cache and a circuit breaker for the
// network-facing backend.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// MinBatchSize is the minimum allowed embedding batch size.
	MinBatchSize = 1
	// MaxBatchSize caps a single sub-batch sent to any backend.
	MaxBatchSize = 50
	// DefaultBatchSize is used when configuration doesn't specify one.
	DefaultBatchSize = 32

	// DefaultRemoteTimeout bounds a single remote embedding request.
	DefaultRemoteTimeout = 30 * time.Second
	// DefaultModelDownloadTimeout is not applied anywhere: the local
	// backend loads an existing shared library from a configured path
	// and performs no download.
	DefaultModelDownloadTimeout = 10 * time.Minute

	// DefaultMaxRetries is the default number of retry attempts for the
	// remote backend.
	DefaultMaxRetries = 3

	// StaticDimensions is the embedding width produced by the
	// deterministic fallback backend.
	StaticDimensions = 384
)

// Embedder generates L2-normalized vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, sub-batched
	// internally to respect the backend's batch size limit. On error no
	// embeddings are returned; a backend that sub-batches reports the
	// failure as a *BatchError carrying the failed sub-batch's offset.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding width.
	Dimensions() int

	// ModelName returns the model identifier, used as part of the cache
	// key so switching backends never returns a stale cached vector.
	ModelName() string

	// Available checks if the embedder is ready to serve requests.
	Available(ctx context.Context) bool

	// Close releases resources held by the embedder.
	Close() error
}

// BatchError reports a sub-batch failure by the offset into the original
// texts slice at which the failed sub-batch starts, so the caller can
// report which chunks failed. Embeddings computed for earlier
// sub-batches are not returned alongside it.
type BatchError struct {
	Offset int
	Err    error
}

func (e *BatchError) Error() string {
	return e.Err.Error()
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// normalizeVector scales v to unit length. A zero vector is returned
// unchanged since it has no direction to normalize.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// clampBatchSize keeps a configured batch size within [MinBatchSize,
// MaxBatchSize].
func clampBatchSize(n int) int {
	if n < MinBatchSize {
		return DefaultBatchSize
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}
