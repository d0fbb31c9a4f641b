package keywords

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/core/domain"
)

func TestExtract(t *testing.T) {
	t.Run("orders by frequency", func(t *testing.T) {
		got := Extract("books and more books and reading about books reading", 10)
		assert.Equal(t, []string{"books", "reading", "more", "about"}, got)
	})

	t.Run("drops stop words and single runes", func(t *testing.T) {
		got := Extract("The cat is a x", 10)
		assert.Equal(t, []string{"cat"}, got)
	})

	t.Run("limits results", func(t *testing.T) {
		got := Extract("alpha beta gamma delta", 2)
		assert.Equal(t, []string{"alpha", "beta"}, got)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, Extract("", 10))
		assert.Nil(t, Extract("text", 0))
	})

	t.Run("cjk runs count as words", func(t *testing.T) {
		got := Extract("机器学习，机器学习，烹饪", 10)
		assert.Equal(t, []string{"机器学习", "烹饪"}, got)
	})
}

func TestProcessor(t *testing.T) {
	p := New(0)
	assert.Equal(t, "keywords", p.Name())
	assert.Equal(t, DefaultMaxKeywords, p.limit)

	chunks := []domain.DocumentChunk{
		{Content: "vector vector index"},
		{Content: "a"},
	}

	out, err := p.Process(context.Background(), &domain.Document{}, chunks)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []string{"vector", "index"}, out[0].Metadata[MetadataKey])
	assert.Nil(t, out[1].Metadata)
}
