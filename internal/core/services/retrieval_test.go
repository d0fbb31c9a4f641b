package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/adapters/driven/embedding/local"
	"github.com/custodia-labs/libris/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/postprocessors"
	"github.com/custodia-labs/libris/internal/postprocessors/chunker"
	"github.com/custodia-labs/libris/internal/postprocessors/keywords"
)

const (
	mlText = "Machine learning is a branch of artificial intelligence. " +
		"Machine learning systems learn patterns from data and improve with experience."
	cookingText = "Cooking pasta requires boiling water with plenty of salt. " +
		"Drain the noodles when they are tender and toss them with sauce."
)

func testPipeline() *postprocessors.Pipeline {
	return postprocessors.NewPipeline(
		chunker.New(chunker.WithChunkSize(200), chunker.WithOverlap(20)),
		keywords.New(5),
	)
}

// newLocalRetrieval wires the hashed embedder and memory index.
func newLocalRetrieval(opts ...RetrievalOption) (*RetrievalService, *memory.VectorIndex) {
	backend := local.NewEmbeddingService(256)
	embedder := NewEmbeddingProvider(backend, 0, WithBatchDelay(0))
	index := memory.NewVectorIndex("test", 256)
	return NewRetrievalService(embedder, index, testPipeline(), opts...), index
}

func TestRetrievalService_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps chunks with ids, ordinals and metadata", func(t *testing.T) {
		svc, index := newLocalRetrieval()
		doc := domain.Document{
			ID:       "ml",
			Title:    "Intro to ML",
			Content:  mlText,
			Metadata: map[string]any{"author": "Ada"},
		}

		res, err := svc.Ingest(ctx, doc)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeSuccess, res.Outcome)
		assert.Equal(t, 1, res.Chunks)
		assert.Equal(t, 1, res.Indexed)
		assert.Zero(t, res.Skipped)

		hits, err := index.Search(ctx, mustEmbed(t, svc, mlText), domain.VectorQuery{Limit: 1})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		h := hits[0]
		assert.NotEmpty(t, h.ChunkID)
		assert.Equal(t, "ml", h.DocumentID)
		assert.Equal(t, 0, h.Index)
		assert.Equal(t, "ml", h.Metadata["document_id"])
		assert.Equal(t, "Intro to ML", h.Metadata["title"])
		assert.Equal(t, "Ada", h.Metadata["author"])
		assert.Contains(t, h.Metadata, keywords.MetadataKey)
	})

	t.Run("re-ingestion replaces previous chunks", func(t *testing.T) {
		svc, _ := newLocalRetrieval()
		doc := domain.Document{ID: "ml", Content: mlText}

		_, err := svc.Ingest(ctx, doc)
		require.NoError(t, err)
		first, err := svc.Count(ctx, "ml")
		require.NoError(t, err)

		_, err = svc.Ingest(ctx, doc)
		require.NoError(t, err)
		second, err := svc.Count(ctx, "ml")
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("empty content indexes nothing", func(t *testing.T) {
		svc, _ := newLocalRetrieval()
		res, err := svc.Ingest(ctx, domain.Document{ID: "empty", Content: "   "})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeSuccess, res.Outcome)
		assert.Zero(t, res.Chunks)
	})

	t.Run("missing id is invalid", func(t *testing.T) {
		svc, _ := newLocalRetrieval()
		_, err := svc.Ingest(ctx, domain.Document{Content: mlText})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("failed delete aborts", func(t *testing.T) {
		backend := local.NewEmbeddingService(16)
		index := &faultyIndex{VectorIndex: memory.NewVectorIndex("", 16), deleteErr: domain.ErrIndexUnavailable}
		svc := NewRetrievalService(NewEmbeddingProvider(backend, 0, WithBatchDelay(0)), index, testPipeline())

		_, err := svc.Ingest(ctx, domain.Document{ID: "ml", Content: mlText})
		assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
		n, _ := index.Count(ctx, "")
		assert.Zero(t, n)
	})

	t.Run("chunks without embeddings are skipped", func(t *testing.T) {
		m := newMockEmbedder(8)
		m.batchErr = errBackend
		m.failTexts[strings.TrimSpace(mlText)] = true
		index := memory.NewVectorIndex("", 8)
		svc := NewRetrievalService(NewEmbeddingProvider(m, 0, WithBatchDelay(0)), index, testPipeline())

		res, err := svc.Ingest(ctx, domain.Document{ID: "ml", Content: mlText})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeDegraded, res.Outcome)
		assert.Equal(t, 1, res.Skipped)
		assert.Zero(t, res.Indexed)
	})

	t.Run("keyword index receives chunks", func(t *testing.T) {
		engine := &mockSearchEngine{}
		svc, _ := newLocalRetrieval(WithKeywordIndex(engine, domain.RetrievalModeHybrid))

		_, err := svc.Ingest(ctx, domain.Document{ID: "ml", Content: mlText})
		require.NoError(t, err)
		assert.Equal(t, []string{"ml"}, engine.deleted)
		assert.Len(t, engine.indexed, 1)
	})
}

func mustEmbed(t *testing.T, svc *RetrievalService, text string) []float32 {
	t.Helper()
	vec, err := svc.Embedder().EmbedOne(context.Background(), text)
	require.NoError(t, err)
	return vec
}

func TestRetrievalService_Retrieve(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLocalRetrieval()
	_, err := svc.Ingest(ctx, domain.Document{ID: "ml", Content: mlText})
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, domain.Document{ID: "cooking", Content: cookingText})
	require.NoError(t, err)

	t.Run("most similar document ranks first", func(t *testing.T) {
		chunks, err := svc.Retrieve(ctx, "What is machine learning?", "", 2)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "ml", chunks[0].DocumentID)
		assert.Greater(t, chunks[0].Score, chunks[1].Score)
	})

	t.Run("document filter", func(t *testing.T) {
		chunks, err := svc.Retrieve(ctx, "What is machine learning?", "cooking", 5)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "cooking", chunks[0].DocumentID)
	})

	t.Run("threshold filters weak matches", func(t *testing.T) {
		th := 0.3
		chunks, err := svc.RetrieveWithThreshold(ctx, "machine learning", "", 5, &th)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "ml", chunks[0].DocumentID)
	})

	t.Run("default top k", func(t *testing.T) {
		chunks, err := svc.Retrieve(ctx, "pasta", "", 0)
		require.NoError(t, err)
		assert.Len(t, chunks, 2)
	})

	t.Run("empty query is invalid", func(t *testing.T) {
		_, err := svc.Retrieve(ctx, "  ", "", 5)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("index failure is returned", func(t *testing.T) {
		backend := local.NewEmbeddingService(16)
		index := &faultyIndex{VectorIndex: memory.NewVectorIndex("", 16), searchErr: domain.ErrIndexUnavailable}
		broken := NewRetrievalService(NewEmbeddingProvider(backend, 0, WithBatchDelay(0)), index, testPipeline())

		_, err := broken.Retrieve(ctx, "anything", "", 5)
		assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	})
}

func TestRetrievalService_Hybrid(t *testing.T) {
	ctx := context.Background()
	engine := &mockSearchEngine{}
	svc, _ := newLocalRetrieval(WithKeywordIndex(engine, domain.RetrievalModeHybrid))
	require.Equal(t, domain.RetrievalModeHybrid, svc.Mode())

	_, err := svc.Ingest(ctx, domain.Document{ID: "ml", Content: mlText})
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, domain.Document{ID: "cooking", Content: cookingText})
	require.NoError(t, err)

	cookingChunk := engine.indexed[len(engine.indexed)-1]
	engine.hits = []domain.SearchHit{{ChunkID: cookingChunk.ID, DocumentID: "cooking", Content: cookingChunk.Content, Score: 9}}

	t.Run("keyword hits are fused", func(t *testing.T) {
		chunks, err := svc.Retrieve(ctx, "machine learning", "", 2)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		// cooking appears in both lists, ml only in the vector list
		assert.Equal(t, "cooking", chunks[0].DocumentID)
		assert.Less(t, chunks[0].Score, 1.0, "fused hits keep vector similarity")
	})

	t.Run("keyword failure falls back to vector results", func(t *testing.T) {
		engine.searchErr = errBackend
		defer func() { engine.searchErr = nil }()

		chunks, err := svc.Retrieve(ctx, "machine learning", "", 2)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "ml", chunks[0].DocumentID)
	})
}

func TestRetrievalService_ModeWithoutEngine(t *testing.T) {
	svc, _ := newLocalRetrieval(WithKeywordIndex(nil, domain.RetrievalModeHybrid))
	assert.Equal(t, domain.RetrievalModeVector, svc.Mode())
}

func TestReciprocalRankFusion(t *testing.T) {
	vector := []domain.SearchHit{
		{ChunkID: "a", Score: 0.9},
		{ChunkID: "b", Score: 0.8},
	}
	keyword := []domain.SearchHit{
		{ChunkID: "b", Score: 5},
		{ChunkID: "c", Score: 4},
	}

	fused := reciprocalRankFusion(vector, keyword, rrfK)

	require.Len(t, fused, 3)
	assert.Equal(t, "b", fused[0].ChunkID)
	assert.InDelta(t, 0.8, fused[0].Score, 1e-9)
	assert.Equal(t, "a", fused[1].ChunkID)
	assert.Equal(t, "c", fused[2].ChunkID)
	assert.Zero(t, fused[2].Score)
}

func TestRetrievalService_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	engine := &mockSearchEngine{}
	svc, _ := newLocalRetrieval(WithKeywordIndex(engine, domain.RetrievalModeVector))
	_, err := svc.Ingest(ctx, domain.Document{ID: "ml", Content: mlText})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDocument(ctx, "ml"))
	n, err := svc.Count(ctx, "ml")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, engine.deleted, "ml")

	assert.ErrorIs(t, svc.DeleteDocument(ctx, ""), domain.ErrInvalidInput)
}
