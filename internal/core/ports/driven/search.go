package driven

import (
	"context"

	"github.com/custodia-labs/libris/internal/core/domain"
)

// SearchEngine provides full-text search over chunk contents.
// Backed by bleve; only consulted in hybrid retrieval mode.
type SearchEngine interface {
	// Index adds or replaces chunks in the keyword index.
	Index(ctx context.Context, chunks []domain.DocumentChunk) error

	// DeleteByDocument removes every chunk of a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Search performs a keyword search, optionally restricted to one document.
	Search(ctx context.Context, query, documentID string, limit int) ([]domain.SearchHit, error)

	// Close releases resources.
	Close() error
}
