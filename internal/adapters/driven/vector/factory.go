// Package vector selects and opens the configured vector index backend.
package vector

import (
	"fmt"

	"github.com/custodia-labs/libris/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/libris/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/libris/internal/adapters/driven/vector/chroma"
	"github.com/custodia-labs/libris/internal/adapters/driven/vector/pgvector"
	"github.com/custodia-labs/libris/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

// New opens the backend named by settings for vectors of size dims.
// The index is not initialised; the caller runs Initialize.
func New(settings *domain.VectorStoreSettings, dims int) (driven.VectorIndex, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: vector store settings are required", domain.ErrInvalidInput)
	}
	if dims <= 0 {
		return nil, fmt.Errorf("%w: vector dimensions must be positive, got %d", domain.ErrInvalidInput, dims)
	}

	collection := settings.Collection
	if collection == "" {
		collection = domain.DefaultCollection
	}

	switch settings.Backend {
	case domain.VectorBackendSQLite, "":
		idx, err := sqlite.OpenVectorIndex(settings.Path, collection, dims)
		if err != nil {
			return nil, fmt.Errorf("%w: sqlite: %w", domain.ErrIndexUnavailable, err)
		}
		return idx, nil

	case domain.VectorBackendMemory:
		return memory.NewVectorIndex(collection, dims), nil

	case domain.VectorBackendQdrant:
		return qdrant.NewVectorIndex(qdrant.Config{
			URL:        settings.Endpoint(),
			APIKey:     settings.APIKey,
			Collection: collection,
			Dimensions: dims,
		}), nil

	case domain.VectorBackendChroma:
		idx, err := chroma.NewVectorIndex(chroma.Config{
			URL:        settings.Endpoint(),
			Collection: collection,
			Dimensions: dims,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil

	case domain.VectorBackendPGVector:
		idx, err := pgvector.NewVectorIndex(pgvector.Config{
			DSN:        settings.DSN,
			Collection: collection,
			Dimensions: dims,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil

	default:
		return nil, fmt.Errorf("%w: unsupported vector backend %q", domain.ErrInvalidInput, settings.Backend)
	}
}
