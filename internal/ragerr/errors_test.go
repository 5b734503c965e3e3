package ragerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRagError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	ragErr := New(ErrCodeFileNotFound, "file not found: policy.pdf", originalErr)

	require.NotNil(t, ragErr)
	assert.Equal(t, originalErr, errors.Unwrap(ragErr))
	assert.True(t, errors.Is(ragErr, originalErr))
}

func TestRagError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "oversized source",
			code:     ErrCodeOversizedSource,
			message:  "document exceeds 100MiB limit",
			expected: "[ERR_204_OVERSIZED_SOURCE] document exceeds 100MiB limit",
		},
		{
			name:     "dimension mismatch",
			code:     ErrCodeDimensionMismatch,
			message:  "expected 384 dims, got 768",
			expected: "[ERR_402_DIMENSION_MISMATCH] expected 384 dims, got 768",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestRagError_Is_MatchesByCode(t *testing.T) {
	a := New(ErrCodeQueryEmpty, "query is empty", nil)
	b := New(ErrCodeQueryEmpty, "a different message, same code", nil)
	c := New(ErrCodeInvalidScope, "unknown scope", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeOversizedSource, CategoryIO},
		{ErrCodeNetworkTimeout, CategoryNetwork},
		{ErrCodeDimensionMismatch, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, New(tt.code, "x", nil).Category)
	}
}

func TestSeverityFromCode_FatalCases(t *testing.T) {
	assert.Equal(t, SeverityFatal, New(ErrCodeCorruptIndex, "x", nil).Severity)
	assert.Equal(t, SeverityFatal, New(ErrCodeStoreInconsistent, "x", nil).Severity)
}

func TestIsRetryable_NetworkErrorsOnly(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeNetworkTimeout, "x", nil)))
	assert.True(t, IsRetryable(New(ErrCodeEmbeddingBackend, "x", nil)))
	assert.False(t, IsRetryable(New(ErrCodeInvalidInput, "x", nil)))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestWithDetail_AndWithSuggestion_Chain(t *testing.T) {
	err := New(ErrCodeOversizedSource, "too big", nil).
		WithDetail("path", "/docs/policy.pdf").
		WithDetail("sizeMiB", "142").
		WithSuggestion("split the document or raise ragMaxFileSizeMiB")

	assert.Equal(t, "/docs/policy.pdf", err.Details["path"])
	assert.Equal(t, "142", err.Details["sizeMiB"])
	assert.Equal(t, "split the document or raise ragMaxFileSizeMiB", err.Suggestion)
}

func TestWrap_NilError_ReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestGetCode_NonRagError_ReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", GetCode(errors.New("plain")))
}
