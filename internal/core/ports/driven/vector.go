package driven

import (
	"context"

	"github.com/custodia-labs/libris/internal/core/domain"
)

// VectorIndex stores document chunks with their embeddings and answers
// cosine similarity queries.
//
// Every stored vector has exactly Dimensions() components. Upsert skips
// chunks that violate this and reports them in the result. A query vector
// of the wrong size is a caller error and returns domain.ErrDimensionMismatch.
// Backend connectivity failures wrap domain.ErrIndexUnavailable.
type VectorIndex interface {
	// Initialize creates the collection with cosine metric if absent.
	// It is idempotent.
	Initialize(ctx context.Context) error

	// Upsert stores chunks. An empty slice is a no-op.
	Upsert(ctx context.Context, chunks []domain.DocumentChunk) (domain.UpsertResult, error)

	// Search returns up to q.Limit hits ordered by score descending.
	Search(ctx context.Context, vector []float32, q domain.VectorQuery) ([]domain.SearchHit, error)

	// DeleteByDocument removes every chunk of a document.
	// Deleting a document with no chunks succeeds.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Count returns the number of chunks for a document, or for the whole
	// collection when documentID is empty.
	Count(ctx context.Context, documentID string) (int, error)

	// Stats describes the collection.
	Stats(ctx context.Context) (domain.IndexStats, error)

	// Dimensions returns the configured vector size.
	Dimensions() int

	// Ping validates the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
