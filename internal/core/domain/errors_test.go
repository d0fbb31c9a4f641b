package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrNotImplemented", ErrNotImplemented, "not implemented"},
		{"ErrUnsupportedType", ErrUnsupportedType, "unsupported type"},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable, "embedding service unavailable"},
		{"ErrDimensionMismatch", ErrDimensionMismatch, "vector dimension mismatch"},
		{"ErrIndexUnavailable", ErrIndexUnavailable, "vector index unavailable"},
		{"ErrSearchUnavailable", ErrSearchUnavailable, "keyword index unavailable"},
		{"ErrLLMUnavailable", ErrLLMUnavailable, "LLM service unavailable"},
		{"ErrGenerationFailed", ErrGenerationFailed, "generation failed"},
		{"ErrNoRelevantContext", ErrNoRelevantContext, "no relevant context"},
		{"ErrSessionNotFound", ErrSessionNotFound, "session not found"},
		{"ErrUnknownTaskKind", ErrUnknownTaskKind, "unknown task kind"},
		{"ErrConfigInvalid", ErrConfigInvalid, "invalid configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.err)
			assert.Equal(t, tt.msg, tt.err.Error())
		})
	}
}

func TestErrors_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("qdrant search: %w", ErrIndexUnavailable)

	assert.True(t, errors.Is(wrapped, ErrIndexUnavailable))
	assert.False(t, errors.Is(wrapped, ErrEmbeddingUnavailable))
}

func TestErrors_Distinct(t *testing.T) {
	assert.NotEqual(t, ErrEmbeddingUnavailable, ErrIndexUnavailable)
	assert.NotEqual(t, ErrLLMUnavailable, ErrGenerationFailed)
}
