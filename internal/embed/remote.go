package embed

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docrag/engine/internal/ragerr"
)

// RemoteEmbedder calls an OpenAI-compatible embeddings API. It requires a
// credential supplied at construction and is wrapped in a circuit breaker
// so a down backend fails fast instead of stalling ingest or search.
type RemoteEmbedder struct {
	client  *openai.Client
	model   string
	dims    int
	breaker *ragerr.CircuitBreaker
	retry   ragerr.RetryConfig
}

// RemoteConfig configures the remote embedding backend.
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Dims    int
}

// NewRemoteEmbedder constructs a RemoteEmbedder. APIKey is required.
func NewRemoteEmbedder(cfg RemoteConfig) (*RemoteEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, ragerr.New(ragerr.ErrCodeConfigInvalid, "remote embedding backend requires an API key", nil)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	dims := cfg.Dims
	if dims <= 0 {
		dims = 1536
	}

	return &RemoteEmbedder{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		dims:    dims,
		breaker: ragerr.NewCircuitBreaker("embed-remote"),
		retry:   ragerr.DefaultRetryConfig(),
	}, nil
}

// Embed embeds a single text via the remote API.
func (r *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := r.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sub-batches texts to MaxBatchSize, calling the remote API
// per sub-batch through the circuit breaker with retry/backoff.
func (r *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for offset := 0; offset < len(texts); offset += MaxBatchSize {
		end := offset + MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		sub := texts[offset:end]

		vecs, err := ragerr.RetryWithResult(ctx, r.retry, func() ([][]float32, error) {
			return r.embedOnce(ctx, sub)
		})
		if err != nil {
			return nil, &BatchError{Offset: offset, Err: ragerr.Wrap(ragerr.ErrCodeEmbeddingBackend, err)}
		}
		out = append(out, vecs...)
	}

	return out, nil
}

func (r *RemoteEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultRemoteTimeout)
	defer cancel()

	return ragerr.ExecuteWithResult(r.breaker,
		func() ([][]float32, error) {
			resp, err := r.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: texts,
				Model: openai.EmbeddingModel(r.model),
			})
			if err != nil {
				return nil, fmt.Errorf("remote embedding request failed: %w", err)
			}
			if len(resp.Data) != len(texts) {
				return nil, fmt.Errorf("remote backend returned %d embeddings for %d inputs", len(resp.Data), len(texts))
			}

			vecs := make([][]float32, len(resp.Data))
			for i, d := range resp.Data {
				vecs[i] = normalizeVector(d.Embedding)
			}
			return vecs, nil
		},
		func() ([][]float32, error) {
			return nil, ragerr.ErrCircuitOpen
		},
	)
}

func (r *RemoteEmbedder) Dimensions() int   { return r.dims }
func (r *RemoteEmbedder) ModelName() string { return r.model }

func (r *RemoteEmbedder) Available(ctx context.Context) bool {
	return r.breaker.Allow()
}

func (r *RemoteEmbedder) Close() error { return nil }
