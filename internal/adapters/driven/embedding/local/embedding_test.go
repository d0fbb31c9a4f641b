package local

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/core/domain"
)

func TestEmbeddingService_Defaults(t *testing.T) {
	s := NewEmbeddingService(0)
	assert.Equal(t, DefaultDimensions, s.Dimensions())
	assert.Equal(t, "hashed-tf", s.ModelName())
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}

func TestEmbeddingService_Embed(t *testing.T) {
	ctx := context.Background()
	s := NewEmbeddingService(256)

	t.Run("unit length", func(t *testing.T) {
		vec, err := s.Embed(ctx, "neural networks learn representations")
		require.NoError(t, err)
		require.Len(t, vec, 256)
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	})

	t.Run("deterministic", func(t *testing.T) {
		a, _ := s.Embed(ctx, "Machine learning")
		b, _ := s.Embed(ctx, "machine LEARNING")
		assert.Equal(t, a, b)
	})

	t.Run("no tokens yields zero vector", func(t *testing.T) {
		vec, err := s.Embed(ctx, "  ... !!")
		require.NoError(t, err)
		assert.True(t, domain.IsZeroVector(vec))
	})

	t.Run("shared vocabulary is closer", func(t *testing.T) {
		q, _ := s.Embed(ctx, "what is machine learning")
		ml, _ := s.Embed(ctx, "machine learning is a field of artificial intelligence")
		cook, _ := s.Embed(ctx, "bake the bread at a high oven temperature")
		assert.Greater(t, domain.CosineSimilarity(q, ml), domain.CosineSimilarity(q, cook))
	})

	t.Run("han text uses characters and bigrams", func(t *testing.T) {
		q, _ := s.Embed(ctx, "机器学习")
		ml, _ := s.Embed(ctx, "机器学习是人工智能的分支")
		cook, _ := s.Embed(ctx, "烤面包需要高温")
		assert.Greater(t, domain.CosineSimilarity(q, ml), domain.CosineSimilarity(q, cook))
	})
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	s := NewEmbeddingService(64)
	vecs, err := s.EmbedBatch(context.Background(), []string{"one", "two", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.True(t, domain.IsZeroVector(vecs[2]))
	assert.NotEqual(t, vecs[0], vecs[1])
}
