package postprocessors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/postprocessors/chunker"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Names())

	r.Register("stub", func(cfg map[string]any) (driven.PostProcessor, error) {
		name := "default"
		if n, ok := cfg["name"].(string); ok {
			name = n
		}
		return &stubProcessor{name: name}, nil
	})

	assert.True(t, r.Has("stub"))
	assert.False(t, r.Has("missing"))

	proc, err := r.Build("stub", map[string]any{"name": "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", proc.Name())

	_, err = r.Build("missing", nil)
	assert.Error(t, err)
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	assert.Equal(t, []string{"chunker", "keywords"}, r.Names())
}

func TestBuildChunker_Config(t *testing.T) {
	t.Run("explicit values", func(t *testing.T) {
		proc, err := buildChunker(map[string]any{"chunk_size": int64(500), "overlap": float64(0)})
		require.NoError(t, err)

		c := proc.(*chunker.Processor)
		assert.Equal(t, 500, c.ChunkSize())
		assert.Equal(t, 0, c.Overlap())
	})

	t.Run("defaults", func(t *testing.T) {
		proc, err := buildChunker(nil)
		require.NoError(t, err)

		c := proc.(*chunker.Processor)
		assert.Equal(t, chunker.DefaultChunkSize, c.ChunkSize())
		assert.Equal(t, chunker.DefaultChunkOverlap, c.Overlap())
	})
}
