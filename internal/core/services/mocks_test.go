package services

import (
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/libris/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

var errBackend = errors.New("backend down")

// mockEmbedder is a driven.EmbeddingService returning a fixed vector per
// text, with failure injection.
type mockEmbedder struct {
	mu         sync.Mutex
	dims       int
	vectors    map[string][]float32
	batchErr   error
	failTexts  map[string]bool
	shortBatch bool
	embedCalls int
	batchCalls int
	batchSizes []int
	pingErr    error
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims, vectors: map[string][]float32{}, failTexts: map[string]bool{}}
}

func (m *mockEmbedder) vectorFor(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	v := make([]float32, m.dims)
	v[len(text)%m.dims] = 1
	return v
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	if m.failTexts[text] {
		return nil, errBackend
	}
	return m.vectorFor(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if m.failTexts[t] {
			return nil, errBackend
		}
		out = append(out, m.vectorFor(t))
	}
	if m.shortBatch && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return m.dims }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return m.pingErr }
func (m *mockEmbedder) Close() error                 { return nil }

func (m *mockEmbedder) calls() (embed, batch int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls, m.batchCalls
}

// mockLLM is a driven.LLMService that records the messages it receives.
type mockLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	pingErr  error
	messages [][]driven.ChatMessage
	prompts  []string
	opts     []driven.GenerateOptions
}

func (m *mockLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	return m.reply, m.err
}

func (m *mockLLM) Chat(_ context.Context, msgs []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msgs)
	return m.reply, m.err
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return m.pingErr }
func (m *mockLLM) Close() error                 { return nil }

func (m *mockLLM) lastMessages() []driven.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return nil
	}
	return m.messages[len(m.messages)-1]
}

// mockPromptStore serves prompts from a map.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if p, ok := m.prompts[name]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

func (m *mockPromptStore) Reload() {}

// mockSearchEngine is a driven.SearchEngine returning canned hits.
type mockSearchEngine struct {
	mu        sync.Mutex
	hits      []domain.SearchHit
	searchErr error
	indexed   []domain.DocumentChunk
	deleted   []string
}

func (m *mockSearchEngine) Index(_ context.Context, chunks []domain.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexed = append(m.indexed, chunks...)
	return nil
}

func (m *mockSearchEngine) DeleteByDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockSearchEngine) Search(_ context.Context, _, _ string, limit int) ([]domain.SearchHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if len(m.hits) > limit {
		return m.hits[:limit], nil
	}
	return m.hits, nil
}

func (m *mockSearchEngine) Close() error { return nil }

// faultyIndex wraps the memory index with failure injection.
type faultyIndex struct {
	*memory.VectorIndex
	searchErr error
	deleteErr error
	statsErr  error
}

func (f *faultyIndex) Search(ctx context.Context, v []float32, q domain.VectorQuery) ([]domain.SearchHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.VectorIndex.Search(ctx, v, q)
}

func (f *faultyIndex) DeleteByDocument(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.VectorIndex.DeleteByDocument(ctx, id)
}

func (f *faultyIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	if f.statsErr != nil {
		return domain.IndexStats{}, f.statsErr
	}
	return f.VectorIndex.Stats(ctx)
}

// mockAIValidator records validation calls.
type mockAIValidator struct {
	embeddingErr error
	llmErr       error
	embedCalled  bool
	llmCalled    bool
}

func (m *mockAIValidator) ValidateEmbedding(_ *domain.EmbeddingSettings) error {
	m.embedCalled = true
	return m.embeddingErr
}

func (m *mockAIValidator) ValidateLLM(_ *domain.LLMSettings) error {
	m.llmCalled = true
	return m.llmErr
}

// mockConfigValidator fails with a fixed error.
type mockConfigValidator struct {
	err  error
	seen map[string]any
}

func (m *mockConfigValidator) Validate(cfg map[string]any) error {
	m.seen = cfg
	return m.err
}
