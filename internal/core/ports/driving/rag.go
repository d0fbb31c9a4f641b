package driving

import (
	"context"

	"github.com/custodia-labs/libris/internal/core/domain"
)

// RAGService is the upstream contract used by every driving adapter.
type RAGService interface {
	// Ingest replaces the indexed chunks of a document.
	Ingest(ctx context.Context, doc domain.Document) (domain.IngestResult, error)

	// Retrieve returns the topK most similar chunks, optionally scoped to a document.
	Retrieve(ctx context.Context, query, documentID string, topK int) ([]domain.ContextChunk, error)

	// Answer retrieves context and generates a grounded answer.
	// Stage failures are reported in the Answer outcome, not as an error.
	Answer(ctx context.Context, req domain.AnswerRequest) (domain.Answer, error)

	// Chat handles one user turn of a session.
	Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatReply, error)

	// EndSession discards a chat session.
	EndSession(sessionID string) error

	// DeleteDocument removes every indexed chunk of a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Count returns the number of chunks for a document, or all chunks when empty.
	Count(ctx context.Context, documentID string) (int, error)

	// Status reports the health of the pipeline collaborators.
	Status(ctx context.Context) domain.ServiceStatus
}

// DocumentService ingests files after text extraction.
type DocumentService interface {
	// IngestRaw normalises raw bytes and ingests the text under documentID.
	IngestRaw(ctx context.Context, documentID string, raw *domain.RawDocument) (domain.IngestResult, error)

	// SupportedMIMETypes lists the formats that can be ingested.
	SupportedMIMETypes() []string
}
