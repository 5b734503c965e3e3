package memstat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRead_ReturnsNonZeroHeap(t *testing.T) {
	buf := make([]byte, 1<<20)
	_ = buf

	s := Read()
	assert.Greater(t, s.HeapAllocBytes, uint64(0))
	assert.GreaterOrEqual(t, s.NumGoroutine, 1)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    uint64
		expected string
	}{
		{500, "500 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatBytes(tt.bytes))
	}
}
