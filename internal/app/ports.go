package app

import (
	"context"

	"github.com/custodia-labs/libris/internal/core/domain"
)

// Ingest replaces the indexed chunks of a document.
func (c *Container) Ingest(ctx context.Context, doc domain.Document) (domain.IngestResult, error) {
	p, err := c.pipeline(ctx)
	if err != nil {
		return domain.IngestResult{DocumentID: doc.ID, Outcome: domain.OutcomeFailed}, err
	}
	return p.rag.Ingest(ctx, doc)
}

// Retrieve returns the topK most similar chunks.
func (c *Container) Retrieve(ctx context.Context, query, documentID string, topK int) ([]domain.ContextChunk, error) {
	p, err := c.pipeline(ctx)
	if err != nil {
		return nil, err
	}
	return p.rag.Retrieve(ctx, query, documentID, topK)
}

// Answer retrieves context and generates a grounded answer.
func (c *Container) Answer(ctx context.Context, req domain.AnswerRequest) (domain.Answer, error) {
	p, err := c.pipeline(ctx)
	if err != nil {
		return domain.Answer{
			Answer:     domain.GenerationFailedMessage,
			Query:      req.Query,
			DocumentID: req.DocumentID,
			Outcome:    domain.OutcomeFailed,
			Err:        err,
		}, err
	}
	return p.rag.Answer(ctx, req)
}

// Chat handles one user turn of a session.
func (c *Container) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatReply, error) {
	p, err := c.pipeline(ctx)
	if err != nil {
		return domain.ChatReply{
			SessionID: req.SessionID,
			Reply:     domain.DirectChatFailedReply,
			Outcome:   domain.OutcomeFailed,
		}, err
	}
	return p.rag.Chat(ctx, req)
}

// EndSession discards a chat session. The registry outlives the pipeline.
func (c *Container) EndSession(sessionID string) error {
	return c.sessions.Evict(sessionID)
}

// DeleteDocument removes every indexed chunk of a document.
func (c *Container) DeleteDocument(ctx context.Context, documentID string) error {
	p, err := c.pipeline(ctx)
	if err != nil {
		return err
	}
	return p.rag.DeleteDocument(ctx, documentID)
}

// Count returns the chunk count for a document, or all chunks when empty.
func (c *Container) Count(ctx context.Context, documentID string) (int, error) {
	p, err := c.pipeline(ctx)
	if err != nil {
		return 0, err
	}
	return p.rag.Count(ctx, documentID)
}

// Status reports pipeline health. When the pipeline cannot be built the
// failure is reported instead of the component details.
func (c *Container) Status(ctx context.Context) domain.ServiceStatus {
	p, err := c.pipeline(ctx)
	if err == nil {
		return p.rag.Status(ctx)
	}

	failed := domain.ComponentStatus{
		Status:  domain.StatusUnavailable,
		Details: map[string]any{"error": err.Error()},
	}
	return domain.ServiceStatus{
		Embedding:   failed,
		VectorStore: failed,
		Generation:  domain.ComponentStatus{Status: domain.StatusDisabled},
		Config:      c.settings.Snapshot(),
	}
}

// IngestRaw normalises file bytes and ingests them under documentID.
func (c *Container) IngestRaw(ctx context.Context, documentID string, raw *domain.RawDocument) (domain.IngestResult, error) {
	p, err := c.pipeline(ctx)
	if err != nil {
		return domain.IngestResult{DocumentID: documentID, Outcome: domain.OutcomeFailed}, err
	}
	return p.documents.IngestRaw(ctx, documentID, raw)
}

// SupportedMIMETypes lists the formats that can be ingested.
func (c *Container) SupportedMIMETypes() []string {
	return c.normalisers.SupportedMIMETypes()
}

// Run executes a task.
func (c *Container) Run(ctx context.Context, in domain.TaskInput) (domain.TaskResult, error) {
	p, err := c.pipeline(ctx)
	if err != nil {
		return domain.TaskResult{Kind: in.Kind, Outcome: domain.OutcomeFailed, Error: err.Error()}, err
	}
	return p.tasks.Run(ctx, in)
}
