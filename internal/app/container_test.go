package app

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/adapters/driven/embedding/local"
	"github.com/custodia-labs/libris/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/core/services"
)

const (
	mlText      = "Machine learning is a field of artificial intelligence. Machine learning models learn patterns from training data."
	cookingText = "Cooking pasta requires boiling water and salt. Add the pasta to the boiling water and cook for ten minutes."
)

// newTestContainer builds a container over a memory config store with the
// offline embedder and the in-memory vector index.
func newTestContainer(t *testing.T, values map[string]any, opts ...Option) *Container {
	t.Helper()
	store := memory.NewConfigStore()
	defaults := map[string]any{
		"embedding.provider":   "local",
		"embedding.dimensions": 256,
		"vector_store.backend": "memory",
	}
	for k, v := range defaults {
		require.NoError(t, store.Set(k, v))
	}
	for k, v := range values {
		require.NoError(t, store.Set(k, v))
	}

	base := []Option{
		WithConfigStore(store),
		WithDataDir(t.TempDir()),
		WithLLMFactory(func(context.Context, *domain.LLMSettings) (driven.LLMService, error) {
			return nil, nil
		}),
	}
	c, err := NewContainer("", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestContainer_BuildsLazily(t *testing.T) {
	var calls atomic.Int32
	c := newTestContainer(t, nil, WithEmbeddingFactory(
		func(ctx context.Context, s *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
			calls.Add(1)
			return local.NewEmbeddingService(s.Dimensions), nil
		}))

	assert.Equal(t, int32(0), calls.Load())

	n, err := c.Count(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = c.Count(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestContainer_RetriesFailedInitialisation(t *testing.T) {
	var calls atomic.Int32
	c := newTestContainer(t, nil, WithEmbeddingFactory(
		func(ctx context.Context, s *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
			if calls.Add(1) == 1 {
				return nil, domain.ErrEmbeddingUnavailable
			}
			return local.NewEmbeddingService(s.Dimensions), nil
		}))

	_, err := c.Count(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	_, err = c.Count(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestContainer_ReleasesPartialPipeline(t *testing.T) {
	var closed atomic.Bool
	c := newTestContainer(t, nil,
		WithEmbeddingFactory(func(ctx context.Context, s *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
			return &closeTracker{EmbeddingService: local.NewEmbeddingService(s.Dimensions), closed: &closed}, nil
		}),
		WithIndexFactory(func(*domain.VectorStoreSettings, int) (driven.VectorIndex, error) {
			return nil, domain.ErrIndexUnavailable
		}))

	_, err := c.Retrieve(context.Background(), "anything", "", 3)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.True(t, closed.Load())
}

func TestContainer_UnconfiguredEmbedding(t *testing.T) {
	c := newTestContainer(t, map[string]any{"embedding.provider": "openai"})
	t.Setenv(services.EnvEmbeddingAPIKey, "")

	_, err := c.Count(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	st := c.Status(context.Background())
	assert.Equal(t, domain.StatusUnavailable, st.Embedding.Status)
	assert.Equal(t, domain.StatusUnavailable, st.VectorStore.Status)
	assert.Contains(t, st.Embedding.Details["error"], "not configured")
	assert.False(t, st.Healthy())
}

func TestContainer_IngestAndRetrieve(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer(t, nil)

	res, err := c.Ingest(ctx, domain.Document{ID: "ml", Title: "ML", Content: mlText})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.Positive(t, res.Indexed)

	_, err = c.Ingest(ctx, domain.Document{ID: "cooking", Title: "Cooking", Content: cookingText})
	require.NoError(t, err)

	chunks, err := c.Retrieve(ctx, "machine learning models", "", 2)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "ml", chunks[0].DocumentID)

	n, err := c.Count(ctx, "ml")
	require.NoError(t, err)
	assert.Equal(t, res.Indexed, n)

	require.NoError(t, c.DeleteDocument(ctx, "ml"))
	n, err = c.Count(ctx, "ml")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestContainer_AnswerIsExtractiveWithoutLLM(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer(t, nil)

	_, err := c.Ingest(ctx, domain.Document{ID: "ml", Content: mlText})
	require.NoError(t, err)

	ans, err := c.Answer(ctx, domain.AnswerRequest{Query: "what is machine learning", DocumentID: "ml"})
	require.NoError(t, err)
	assert.Equal(t, services.ModelExtractive, ans.ModelUsed)
	assert.Equal(t, domain.OutcomeDegraded, ans.Outcome)
	assert.NotEmpty(t, ans.Context)

	st := c.Status(ctx)
	assert.Equal(t, domain.StatusHealthy, st.Embedding.Status)
	assert.Equal(t, domain.StatusHealthy, st.VectorStore.Status)
	assert.Equal(t, domain.StatusDisabled, st.Generation.Status)
	assert.True(t, st.Healthy())
}

func TestContainer_IngestRaw(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer(t, nil)

	assert.True(t, c.SupportsFile("notes.md"))
	assert.False(t, c.SupportsFile("image.png"))
	assert.NotEmpty(t, c.SupportedMIMETypes())

	res, err := c.IngestRaw(ctx, "notes", &domain.RawDocument{
		URI:      "notes.md",
		MIMEType: "text/markdown",
		Content:  []byte("# Notes\n\n" + mlText),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, res.Outcome)
}

func TestContainer_Tasks(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer(t, nil)

	_, err := c.Run(ctx, domain.TaskInput{Kind: "poem"})
	assert.ErrorIs(t, err, domain.ErrUnknownTaskKind)

	res, err := c.Run(ctx, domain.TaskInput{Kind: domain.TaskSummary, Title: "ML", Content: mlText})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDegraded, res.Outcome)
	assert.NotEmpty(t, res.Text)
}

func TestContainer_EndSession(t *testing.T) {
	c := newTestContainer(t, nil)

	assert.ErrorIs(t, c.EndSession("missing"), domain.ErrSessionNotFound)

	s := c.Sessions().GetOrCreate("", "")
	require.NoError(t, c.EndSession(s.ID))
	assert.Zero(t, c.Sessions().Len())
}

func TestContainer_CloseRebuilds(t *testing.T) {
	var calls atomic.Int32
	c := newTestContainer(t, nil, WithEmbeddingFactory(
		func(ctx context.Context, s *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
			calls.Add(1)
			return local.NewEmbeddingService(s.Dimensions), nil
		}))

	_, err := c.Count(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Count(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestContainer_HybridOpensKeywordIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := newTestContainer(t, map[string]any{"retrieval.mode": "hybrid"}, WithDataDir(dir))

	_, err := c.Ingest(ctx, domain.Document{ID: "cooking", Content: cookingText})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "data", "keyword.bleve"))
	assert.NoError(t, err)

	chunks, err := c.Retrieve(ctx, "boiling pasta", "", 3)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "cooking", chunks[0].DocumentID)
}

func TestNewContainer_FileConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[embedding]\nprovider = \"local\"\ndimensions = 32\n"), 0600))

	c, err := NewContainer(path)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, path, c.ConfigPath())
	settings, err := c.Settings().Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderLocal, settings.Embedding.Provider)
	assert.Equal(t, 32, settings.Embedding.Dimensions)
}

func TestNewContainer_EnvConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	t.Setenv("LIBRIS_CONFIG", path)

	c, err := NewContainer("")
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, path, c.ConfigPath())
}

type closeTracker struct {
	driven.EmbeddingService
	closed *atomic.Bool
}

func (c *closeTracker) Close() error {
	c.closed.Store(true)
	return c.EmbeddingService.Close()
}
