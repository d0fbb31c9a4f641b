package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/libris/internal/core/domain"
)

// mockRAGService is a mock implementation of driving.RAGService.
type mockRAGService struct {
	ingested   []domain.Document
	retrieveQ  string
	retrieveD  string
	retrieveK  int
	answerReq  domain.AnswerRequest
	chats      []domain.ChatRequest
	ended      []string
	deleted    string
	countDoc   string
	status     domain.ServiceStatus
	err        error
	chatErr    error
	chatPrefix string
}

func (m *mockRAGService) Ingest(_ context.Context, doc domain.Document) (domain.IngestResult, error) {
	m.ingested = append(m.ingested, doc)
	if m.err != nil {
		return domain.IngestResult{}, m.err
	}
	return domain.IngestResult{DocumentID: doc.ID, Chunks: 3, Indexed: 3, Outcome: domain.OutcomeSuccess}, nil
}

func (m *mockRAGService) Retrieve(_ context.Context, query, docID string, topK int) ([]domain.ContextChunk, error) {
	m.retrieveQ, m.retrieveD, m.retrieveK = query, docID, topK
	if m.err != nil {
		return nil, m.err
	}
	return []domain.ContextChunk{
		{ChunkID: "c1", DocumentID: "dune", Index: 2, Content: "The spice must flow.", Score: 0.91},
	}, nil
}

func (m *mockRAGService) Answer(_ context.Context, req domain.AnswerRequest) (domain.Answer, error) {
	m.answerReq = req
	if m.err != nil {
		return domain.Answer{}, m.err
	}
	return domain.Answer{
		Answer:     "Spice is the most valuable substance in the universe.",
		Context:    []domain.ContextChunk{{ChunkID: "c1", DocumentID: "dune", Index: 2, Score: 0.91}},
		Confidence: 0.91,
		ModelUsed:  "glm-4",
		Query:      req.Query,
		Outcome:    domain.OutcomeSuccess,
	}, nil
}

func (m *mockRAGService) Chat(_ context.Context, req domain.ChatRequest) (domain.ChatReply, error) {
	m.chats = append(m.chats, req)
	if m.chatErr != nil {
		return domain.ChatReply{}, m.chatErr
	}
	id := req.SessionID
	if id == "" {
		id = "sess-new"
	}
	return domain.ChatReply{SessionID: id, Reply: m.chatPrefix + "re: " + req.Message, Outcome: domain.OutcomeSuccess}, nil
}

func (m *mockRAGService) EndSession(id string) error {
	m.ended = append(m.ended, id)
	return nil
}

func (m *mockRAGService) DeleteDocument(_ context.Context, id string) error {
	m.deleted = id
	return m.err
}

func (m *mockRAGService) Count(_ context.Context, id string) (int, error) {
	m.countDoc = id
	return 42, m.err
}

func (m *mockRAGService) Status(_ context.Context) domain.ServiceStatus {
	return m.status
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	id  string
	raw *domain.RawDocument
}

func (m *mockDocumentService) IngestRaw(_ context.Context, id string, raw *domain.RawDocument) (domain.IngestResult, error) {
	m.id, m.raw = id, raw
	return domain.IngestResult{DocumentID: id, Chunks: 1, Indexed: 1, Outcome: domain.OutcomeSuccess}, nil
}

func (m *mockDocumentService) SupportedMIMETypes() []string {
	return []string{"text/plain", "application/pdf"}
}

// mockTaskService is a mock implementation of driving.TaskService.
type mockTaskService struct {
	input domain.TaskInput
}

func (m *mockTaskService) Run(_ context.Context, in domain.TaskInput) (domain.TaskResult, error) {
	m.input = in
	return domain.TaskResult{Kind: in.Kind, Outcome: domain.OutcomeSuccess, Text: "A desert epic."}, nil
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	values      map[string]string
	validateErr error
	embedding   domain.AIProvider
	embedModel  string
	embedKey    string
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := domain.DefaultAppSettings()
	return &s, nil
}

func (m *mockSettingsService) Save(*domain.AppSettings) error { return nil }

func (m *mockSettingsService) Set(key, value string) error {
	if !strings.Contains(key, ".") {
		return domain.ErrInvalidInput
	}
	m.values[key] = value
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(p domain.AIProvider, model, apiKey string) error {
	m.embedding, m.embedModel, m.embedKey = p, model, apiKey
	return nil
}

func (m *mockSettingsService) SetLLMProvider(domain.AIProvider, string, string) error { return nil }

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) Snapshot() map[string]any {
	return map[string]any{"embedding.model": "embedding-3", "embedding.api_key": "sk-1...cdef"}
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return nil }

func (m *mockSettingsService) ValidateLLMConfig() error { return nil }

type testServices struct {
	rag      *mockRAGService
	docs     *mockDocumentService
	tasks    *mockTaskService
	settings *mockSettingsService
}

func healthy() domain.ServiceStatus {
	ok := domain.ComponentStatus{Status: domain.StatusHealthy}
	return domain.ServiceStatus{
		Embedding:   ok,
		VectorStore: ok,
		Generation:  domain.ComponentStatus{Status: domain.StatusDisabled},
		Config:      map[string]any{"vector_store.backend": "sqlite"},
	}
}

// setupTestServices installs mocks and returns a cleanup func.
func setupTestServices() func() {
	cleanup, _ := setupTestServicesWith()
	return cleanup
}

func setupTestServicesWith() (func(), *testServices) {
	ts := &testServices{
		rag:      &mockRAGService{status: healthy()},
		docs:     &mockDocumentService{},
		tasks:    &mockTaskService{},
		settings: &mockSettingsService{values: map[string]string{}},
	}
	SetServices(&Services{
		RAG:          ts.rag,
		Documents:    ts.docs,
		Tasks:        ts.tasks,
		Settings:     ts.settings,
		SupportsFile: func(string) bool { return true },
	})
	return func() {
		SetServices(nil)
		resetFlags(rootCmd)
	}, ts
}

// resetFlags restores every flag to its default between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}
