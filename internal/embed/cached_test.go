package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder counts Embed/EmbedBatch calls to verify cache hits skip
// the inner embedder.
type countingEmbedder struct {
	*StaticEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{StaticEmbedder: NewStaticEmbedder(64)}
}

func TestCachedEmbedderHitsCache(t *testing.T) {
	inner := newCountingEmbedder()
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	v1, err := cached.Embed(ctx, "repeat me")
	require.NoError(t, err)
	v2, err := cached.Embed(ctx, "repeat me")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedderInstancesDoNotShareEntries(t *testing.T) {
	innerA := newCountingEmbedder()
	innerB := newCountingEmbedder()
	cachedA := NewCachedEmbedder(innerA, 10)
	cachedB := NewCachedEmbedder(innerB, 10)
	ctx := context.Background()

	_, err := cachedA.Embed(ctx, "text")
	require.NoError(t, err)
	_, err = cachedB.Embed(ctx, "text")
	require.NoError(t, err)

	assert.Equal(t, 1, innerA.calls)
	assert.Equal(t, 1, innerB.calls)
}

func TestCachedEmbedderBatchPartialHit(t *testing.T) {
	inner := newCountingEmbedder()
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "first")
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(ctx, []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	// "first" was already cached; only "second" triggers a new batch call.
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedderPassthroughMethods(t *testing.T) {
	inner := newCountingEmbedder()
	cached := NewCachedEmbedder(inner, 10)

	assert.Equal(t, inner.Dimensions(), cached.Dimensions())
	assert.Equal(t, inner.ModelName(), cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
	assert.NoError(t, cached.Close())
	assert.Same(t, inner, cached.Inner())
}

func TestCachedEmbedderEmptyBatch(t *testing.T) {
	inner := newCountingEmbedder()
	cached := NewCachedEmbedder(inner, 10)

	vecs, err := cached.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Equal(t, 0, inner.calls)
}
