package httpapi

import (
	"context"

	"github.com/custodia-labs/libris/internal/core/domain"
)

// mockRAGService is a mock implementation of driving.RAGService.
type mockRAGService struct {
	ingested  domain.Document
	ingest    domain.IngestResult
	chunks    []domain.ContextChunk
	answerReq domain.AnswerRequest
	answer    domain.Answer
	chatReq   domain.ChatRequest
	reply     domain.ChatReply
	deleted   string
	ended     string
	count     int
	countDoc  string
	status    domain.ServiceStatus
	err       error
}

func (m *mockRAGService) Ingest(_ context.Context, doc domain.Document) (domain.IngestResult, error) {
	m.ingested = doc
	return m.ingest, m.err
}

func (m *mockRAGService) Retrieve(_ context.Context, _, _ string, _ int) ([]domain.ContextChunk, error) {
	return m.chunks, m.err
}

func (m *mockRAGService) Answer(_ context.Context, req domain.AnswerRequest) (domain.Answer, error) {
	m.answerReq = req
	return m.answer, m.err
}

func (m *mockRAGService) Chat(_ context.Context, req domain.ChatRequest) (domain.ChatReply, error) {
	m.chatReq = req
	return m.reply, m.err
}

func (m *mockRAGService) EndSession(id string) error {
	m.ended = id
	return m.err
}

func (m *mockRAGService) DeleteDocument(_ context.Context, id string) error {
	m.deleted = id
	return m.err
}

func (m *mockRAGService) Count(_ context.Context, id string) (int, error) {
	m.countDoc = id
	return m.count, m.err
}

func (m *mockRAGService) Status(_ context.Context) domain.ServiceStatus {
	return m.status
}

// mockTaskService is a mock implementation of driving.TaskService.
type mockTaskService struct {
	input  domain.TaskInput
	result domain.TaskResult
	err    error
}

func (m *mockTaskService) Run(_ context.Context, in domain.TaskInput) (domain.TaskResult, error) {
	m.input = in
	return m.result, m.err
}
