package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown normaliser or backend type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates the embedding backend failed or is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrIndexUnavailable indicates the vector store is unreachable or its
	// collection is missing.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrSearchUnavailable indicates the keyword index is not configured.
	ErrSearchUnavailable = errors.New("keyword index unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrGenerationFailed indicates the LLM call returned an error.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrNoRelevantContext indicates retrieval found nothing to answer from.
	ErrNoRelevantContext = errors.New("no relevant context")

	// ErrSessionNotFound indicates a chat session id is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownTaskKind indicates a task kind outside the closed set.
	ErrUnknownTaskKind = errors.New("unknown task kind")

	// ErrConfigInvalid indicates the configuration failed schema validation.
	ErrConfigInvalid = errors.New("invalid configuration")
)
