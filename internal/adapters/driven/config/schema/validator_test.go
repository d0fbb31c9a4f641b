package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/core/domain"
)

func TestValidator_Validate(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		config  map[string]any
		wantErr string
	}{
		{
			name:   "empty config",
			config: map[string]any{},
		},
		{
			name:   "nil config",
			config: nil,
		},
		{
			name: "full valid config",
			config: map[string]any{
				"embedding": map[string]any{
					"provider":   "openai",
					"model":      "embedding-3",
					"dimensions": int64(2048),
					"batch_size": int64(10),
				},
				"vector_store": map[string]any{"backend": "qdrant", "url": "http://localhost:6333"},
				"chunking":     map[string]any{"size": int64(1000), "overlap": int64(200), "keywords": true},
				"retrieval":    map[string]any{"mode": "hybrid", "top_k": int64(5), "similarity_threshold": 0.1},
				"generation":   map[string]any{"temperature": 0.7, "max_tokens": int64(1000)},
				"session":      map[string]any{"ttl": "30m", "max_turns": int64(20)},
			},
		},
		{
			name:    "unknown provider",
			config:  map[string]any{"embedding": map[string]any{"provider": "cohere"}},
			wantErr: "embedding.provider",
		},
		{
			name:    "negative overlap",
			config:  map[string]any{"chunking": map[string]any{"overlap": int64(-1)}},
			wantErr: "chunking.overlap",
		},
		{
			name:    "zero top_k",
			config:  map[string]any{"retrieval": map[string]any{"top_k": int64(0)}},
			wantErr: "retrieval.top_k",
		},
		{
			name:    "wrong type",
			config:  map[string]any{"chunking": map[string]any{"size": "large"}},
			wantErr: "chunking.size",
		},
		{
			name:    "unknown key",
			config:  map[string]any{"llm": map[string]any{"temprature": 0.2}},
			wantErr: "llm",
		},
		{
			name:    "bad duration",
			config:  map[string]any{"session": map[string]any{"ttl": "half an hour"}},
			wantErr: "session.ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.config)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfigInvalid))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidator_ReportsEveryViolation(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	err = v.Validate(map[string]any{
		"chunking":  map[string]any{"size": int64(0)},
		"retrieval": map[string]any{"mode": "semantic"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunking.size")
	assert.Contains(t, err.Error(), "retrieval.mode")
}

func TestValidator_UnencodableValue(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	err = v.Validate(map[string]any{"bad": make(chan int)})

	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}
