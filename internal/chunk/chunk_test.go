package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_SingleShortSentence_ProducesOneChunk(t *testing.T) {
	text := "Workers compensation policy regarding medical benefits."
	chunks := Chunk("doc-1", text, Options{Size: 500, Overlap: 50})

	require.Len(t, chunks, 1)
	assert.Equal(t, "doc-1-chunk-0", chunks[0].ID)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Contains(t, chunks[0].Text, "Workers compensation policy")
}

func TestChunk_IsDeterministic(t *testing.T) {
	text := "First sentence here. Second sentence follows. Third one too! And a question? Final statement."
	a := Chunk("doc-1", text, Options{Size: 40, Overlap: 5})
	b := Chunk("doc-1", text, Options{Size: 40, Overlap: 5})

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i])
	}
}

func TestChunk_DropsShortResidualChunks(t *testing.T) {
	chunks := Chunk("doc-1", "Ok.", Options{Size: 500, Overlap: 50})
	assert.Empty(t, chunks)
}

func TestChunk_OverlapCarriesWordsForward(t *testing.T) {
	text := strings.Repeat("The policy covers medical and dental benefits for all employees. ", 20)
	chunks := Chunk("doc-1", text, Options{Size: 200, Overlap: 5})

	require.Greater(t, len(chunks), 1)

	prevWords := strings.Fields(chunks[0].Text)
	nextWords := strings.Fields(chunks[1].Text)
	assert.Equal(t, prevWords[len(prevWords)-5:], nextWords[:5])
}

func TestEstimateTokens_CeilDivByFour(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 3, EstimateTokens("123456789"))
}
