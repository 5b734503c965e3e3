package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder(384)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 384)
}

func TestStaticEmbedderDistinctInputs(t *testing.T) {
	e := NewStaticEmbedder(384)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "goodbye")
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
}

func TestStaticEmbedderNormalized(t *testing.T) {
	e := NewStaticEmbedder(384)
	vec, err := e.Embed(context.Background(), "normalize me")
	require.NoError(t, err)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	magnitude := math.Sqrt(sumSquares)
	assert.InDelta(t, 1.0, magnitude, 1e-4)
}

func TestStaticEmbedderBatch(t *testing.T) {
	e := NewStaticEmbedder(128)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 128)
	}
}

func TestStaticEmbedderDefaultsDimensions(t *testing.T) {
	e := NewStaticEmbedder(0)
	assert.Equal(t, StaticDimensions, e.Dimensions())
}

func TestStaticEmbedderAlwaysAvailable(t *testing.T) {
	e := NewStaticEmbedder(384)
	assert.True(t, e.Available(context.Background()))
	assert.NoError(t, e.Close())
}

func TestStaticEmbedderModelName(t *testing.T) {
	e := NewStaticEmbedder(384)
	assert.Equal(t, "static-hash-v1", e.ModelName())
}
