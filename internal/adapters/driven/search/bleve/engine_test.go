package bleve

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/core/domain"
)

func testChunks() []domain.DocumentChunk {
	return []domain.DocumentChunk{
		{ID: "a-0", DocumentID: "doc-a", Index: 0, Content: "the whale surfaced near the ship"},
		{ID: "a-1", DocumentID: "doc-a", Index: 1, Content: "captain ahab watched the horizon"},
		{ID: "b-0", DocumentID: "doc-b", Index: 0, Content: "a whale song carried across the bay", Metadata: map[string]any{"source": "notes"}},
		{ID: "c-0", DocumentID: "doc-c", Index: 0, Content: "gardening tips for early spring"},
	}
}

func newMemEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngine_IndexAndSearch(t *testing.T) {
	ctx := context.Background()
	e := newMemEngine(t)
	require.NoError(t, e.Index(ctx, testChunks()))

	n, err := e.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)

	t.Run("matches across documents", func(t *testing.T) {
		hits, err := e.Search(ctx, "whale", "", 10)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		ids := []string{hits[0].ChunkID, hits[1].ChunkID}
		assert.ElementsMatch(t, []string{"a-0", "b-0"}, ids)
		for _, h := range hits {
			assert.Greater(t, h.Score, 0.0)
			assert.NotEmpty(t, h.Content)
		}
	})

	t.Run("restricted to one document", func(t *testing.T) {
		hits, err := e.Search(ctx, "whale", "doc-b", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "b-0", hits[0].ChunkID)
		assert.Equal(t, "doc-b", hits[0].DocumentID)
		assert.Equal(t, "a whale song carried across the bay", hits[0].Content)
		assert.Equal(t, map[string]any{"source": "notes"}, hits[0].Metadata)
	})

	t.Run("stored chunk index", func(t *testing.T) {
		hits, err := e.Search(ctx, "ahab", "", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, 1, hits[0].Index)
	})

	t.Run("limit", func(t *testing.T) {
		hits, err := e.Search(ctx, "whale", "", 1)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("zero limit", func(t *testing.T) {
		hits, err := e.Search(ctx, "whale", "", 0)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("no match", func(t *testing.T) {
		hits, err := e.Search(ctx, "submarine", "", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestEngine_IndexReplacesChunk(t *testing.T) {
	ctx := context.Background()
	e := newMemEngine(t)
	require.NoError(t, e.Index(ctx, testChunks()))

	require.NoError(t, e.Index(ctx, []domain.DocumentChunk{
		{ID: "c-0", DocumentID: "doc-c", Content: "whale watching in spring"},
	}))

	hits, err := e.Search(ctx, "gardening", "", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = e.Search(ctx, "whale", "doc-c", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestEngine_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	e := newMemEngine(t)
	require.NoError(t, e.Index(ctx, testChunks()))

	require.NoError(t, e.DeleteByDocument(ctx, "doc-a"))

	n, err := e.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	hits, err := e.Search(ctx, "whale", "", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b-0", hits[0].ChunkID)

	// Unknown documents are a no-op.
	require.NoError(t, e.DeleteByDocument(ctx, "missing"))
}

func TestEngine_IndexEmpty(t *testing.T) {
	e := newMemEngine(t)
	require.NoError(t, e.Index(context.Background(), nil))
}

func TestEngine_CancelledContext(t *testing.T) {
	e := newMemEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, e.Index(ctx, testChunks()), context.Canceled)
	_, err := e.Search(ctx, "whale", "", 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_PersistsOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keyword", "index.bleve")

	e, err := NewEngine(path)
	require.NoError(t, err)
	assert.Equal(t, path, e.Path())
	require.NoError(t, e.Index(ctx, testChunks()))
	require.NoError(t, e.Close())

	reopened, err := NewEngine(path)
	require.NoError(t, err)
	defer reopened.Close()

	hits, err := reopened.Search(ctx, "horizon", "", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a-1", hits[0].ChunkID)
}
