package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/core/ports/driving"
	"github.com/custodia-labs/libris/internal/logger"
)

// Ensure RAGService implements the interface.
var _ driving.RAGService = (*RAGService)(nil)

// ModelExtractive is reported as ModelUsed when no LLM is configured.
const ModelExtractive = "extractive"

// RAGService answers questions from retrieved book content.
// Every stage failure is captured in the result outcome.
type RAGService struct {
	retrieval *RetrievalService
	llm       driven.LLMService
	prompts   driven.PromptStore
	sessions  *SessionRegistry
	gen       domain.GenerationSettings
	snapshot  func() map[string]any
	now       func() time.Time
}

// RAGOption configures a RAGService.
type RAGOption func(*RAGService)

// WithLLM enables generation. Without an LLM answers are extractive.
func WithLLM(llm driven.LLMService) RAGOption {
	return func(s *RAGService) {
		s.llm = llm
	}
}

// WithPromptStore sets the source of prompt templates.
func WithPromptStore(store driven.PromptStore) RAGOption {
	return func(s *RAGService) {
		s.prompts = store
	}
}

// WithSessions sets the chat session registry.
func WithSessions(r *SessionRegistry) RAGOption {
	return func(s *RAGService) {
		if r != nil {
			s.sessions = r
		}
	}
}

// WithGenerationSettings overrides context length and sampling parameters.
func WithGenerationSettings(gen domain.GenerationSettings) RAGOption {
	return func(s *RAGService) {
		if gen.MaxContextLength > 0 {
			s.gen.MaxContextLength = gen.MaxContextLength
		}
		if gen.MaxTokens > 0 {
			s.gen.MaxTokens = gen.MaxTokens
		}
		if gen.Temperature >= 0 {
			s.gen.Temperature = gen.Temperature
		}
	}
}

// WithConfigSnapshot sets the config section reported by Status.
func WithConfigSnapshot(fn func() map[string]any) RAGOption {
	return func(s *RAGService) {
		s.snapshot = fn
	}
}

// NewRAGService creates the orchestrator.
func NewRAGService(retrieval *RetrievalService, opts ...RAGOption) *RAGService {
	s := &RAGService{
		retrieval: retrieval,
		gen: domain.GenerationSettings{
			MaxContextLength: domain.DefaultMaxContextLength,
			Temperature:      domain.DefaultTemperature,
			MaxTokens:        domain.DefaultMaxTokens,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = NewSessionRegistry(domain.DefaultSessionTTL, domain.DefaultSessionMaxTurns)
	}
	return s
}

// Sessions returns the session registry.
func (s *RAGService) Sessions() *SessionRegistry {
	return s.sessions
}

// Ingest replaces the indexed chunks of a document.
func (s *RAGService) Ingest(ctx context.Context, doc domain.Document) (domain.IngestResult, error) {
	return s.retrieval.Ingest(ctx, doc)
}

// Retrieve returns the topK most similar chunks.
func (s *RAGService) Retrieve(ctx context.Context, query, documentID string, topK int) ([]domain.ContextChunk, error) {
	return s.retrieval.Retrieve(ctx, query, documentID, topK)
}

// DeleteDocument removes every indexed chunk of a document.
func (s *RAGService) DeleteDocument(ctx context.Context, documentID string) error {
	return s.retrieval.DeleteDocument(ctx, documentID)
}

// Count returns the number of chunks for a document, or all chunks when empty.
func (s *RAGService) Count(ctx context.Context, documentID string) (int, error) {
	return s.retrieval.Count(ctx, documentID)
}

func (s *RAGService) modelName() string {
	if s.llm == nil {
		return ModelExtractive
	}
	return s.llm.ModelName()
}

// Answer retrieves context and generates a grounded answer.
// Only an empty query is returned as an error.
func (s *RAGService) Answer(ctx context.Context, req domain.AnswerRequest) (domain.Answer, error) {
	start := s.now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return domain.Answer{}, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}

	logger.Section("Answer")
	ans := domain.Answer{
		Query:      query,
		DocumentID: req.DocumentID,
		ModelUsed:  s.modelName(),
		Context:    []domain.ContextChunk{},
	}
	finish := func() (domain.Answer, error) {
		ans.ResponseTime = s.now().Sub(start)
		logger.Debug("answer outcome=%s confidence=%.3f chunks=%d in %s",
			ans.Outcome, ans.Confidence, len(ans.Context), ans.ResponseTime)
		return ans, nil
	}

	chunks, err := s.retrieval.RetrieveWithThreshold(ctx, query, req.DocumentID, req.TopK, req.Threshold)
	if err != nil {
		logger.Error("answer: retrieval failed: %v", err)
		ans.Answer = domain.GenerationFailedMessage
		ans.Outcome = domain.OutcomeFailed
		ans.Err = err
		return finish()
	}
	if len(chunks) == 0 {
		ans.Answer = domain.NoRelevantInformationMessage
		ans.Outcome = domain.OutcomeSuccess
		ans.Err = domain.ErrNoRelevantContext
		return finish()
	}

	contextText, used := BuildContext(chunks, s.gen.MaxContextLength)
	ans.Context = used
	ans.Confidence = Confidence(used)

	reply, err := s.generate(ctx, contextText, query)
	if err != nil {
		logger.Warn("answer: generation unavailable, using extractive reply: %v", err)
		ans.Answer = extractiveAnswer(contextText)
		ans.Outcome = domain.OutcomeDegraded
		ans.Err = err
		return finish()
	}
	ans.Answer = reply
	ans.Outcome = domain.OutcomeSuccess
	return finish()
}

// generate asks the LLM for an answer grounded in contextText.
func (s *RAGService) generate(ctx context.Context, contextText, query string) (string, error) {
	if s.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	system := renderPrompt(loadPrompt(s.prompts, driven.PromptRAGSystem), map[string]string{
		"context": contextText,
	})
	reply, err := s.llm.Chat(ctx, []driven.ChatMessage{
		{Role: string(domain.RoleSystem), Content: system},
		{Role: string(domain.RoleUser), Content: query},
	}, driven.ChatOptions{MaxTokens: s.gen.MaxTokens, Temperature: s.gen.Temperature})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", domain.ErrGenerationFailed)
	}
	return reply, nil
}

// Chat handles one user turn. Messages that look like questions about
// the book go through Answer when retrieval is allowed; everything else
// is answered directly with the session history.
func (s *RAGService) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatReply, error) {
	start := s.now()
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return domain.ChatReply{
			SessionID: req.SessionID,
			Reply:     domain.EmptyMessageReply,
			Outcome:   domain.OutcomeSuccess,
		}, nil
	}

	session := s.sessions.GetOrCreate(req.SessionID, req.DocumentID)
	documentID := req.DocumentID
	if documentID == "" {
		documentID = session.DocumentID
	}

	reply := domain.ChatReply{SessionID: session.ID}
	if req.UseRetrieval && DecideUseRetrieval(msg) {
		ans, err := s.Answer(ctx, domain.AnswerRequest{Query: msg, DocumentID: documentID, TopK: req.TopK})
		if err != nil {
			return domain.ChatReply{}, err
		}
		reply.Reply = ans.Answer
		reply.UsedRAG = true
		reply.Context = ans.Context
		reply.Confidence = ans.Confidence
		reply.Outcome = ans.Outcome
	} else {
		text, err := s.directChat(ctx, session.History, msg)
		if err != nil {
			logger.Warn("chat: direct generation failed: %v", err)
			reply.Reply = domain.DirectChatFailedReply
			reply.Outcome = domain.OutcomeDegraded
		} else {
			reply.Reply = text
			reply.Outcome = domain.OutcomeSuccess
		}
	}

	if err := s.sessions.Append(session.ID,
		domain.ChatMessage{Role: domain.RoleUser, Content: msg},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: reply.Reply},
	); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return domain.ChatReply{}, err
	}

	reply.ResponseTime = s.now().Sub(start)
	return reply, nil
}

func (s *RAGService) directChat(ctx context.Context, history []domain.ChatMessage, msg string) (string, error) {
	if s.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	msgs := make([]driven.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, driven.ChatMessage{
		Role:    string(domain.RoleSystem),
		Content: loadPrompt(s.prompts, driven.PromptDirectChat),
	})
	for _, m := range history {
		msgs = append(msgs, driven.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, driven.ChatMessage{Role: string(domain.RoleUser), Content: msg})

	text, err := s.llm.Chat(ctx, msgs, driven.ChatOptions{MaxTokens: s.gen.MaxTokens, Temperature: s.gen.Temperature})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", fmt.Errorf("%w: empty reply", domain.ErrGenerationFailed)
	}
	return text, nil
}

// EndSession discards a chat session.
func (s *RAGService) EndSession(sessionID string) error {
	return s.sessions.Evict(sessionID)
}
