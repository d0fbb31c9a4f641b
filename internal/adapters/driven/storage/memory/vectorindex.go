package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory implementation of driven.VectorIndex.
// Search is a linear scan.
type VectorIndex struct {
	mu         sync.RWMutex
	collection string
	dims       int
	chunks     map[string]domain.DocumentChunk
}

// NewVectorIndex creates an empty in-memory index for vectors of size dims.
func NewVectorIndex(collection string, dims int) *VectorIndex {
	if collection == "" {
		collection = domain.DefaultCollection
	}
	return &VectorIndex{
		collection: collection,
		dims:       dims,
		chunks:     make(map[string]domain.DocumentChunk),
	}
}

// Initialize is a no-op.
func (v *VectorIndex) Initialize(_ context.Context) error {
	return nil
}

// Upsert stores chunks keyed by ID. Chunks with the wrong vector size are skipped.
func (v *VectorIndex) Upsert(_ context.Context, chunks []domain.DocumentChunk) (domain.UpsertResult, error) {
	var res domain.UpsertResult
	if len(chunks) == 0 {
		return res, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, c := range chunks {
		if len(c.Vector) != v.dims {
			res.Skipped = append(res.Skipped, c.ID)
			continue
		}
		stored := c
		stored.Vector = append([]float32(nil), c.Vector...)
		stored.Metadata = maps.Clone(c.Metadata)
		v.chunks[c.ID] = stored
		res.Stored++
	}
	return res, nil
}

// Search returns the chunks most similar to vector.
func (v *VectorIndex) Search(_ context.Context, vector []float32, q domain.VectorQuery) ([]domain.SearchHit, error) {
	if len(vector) != v.dims {
		return nil, fmt.Errorf("%w: query has %d components, index has %d",
			domain.ErrDimensionMismatch, len(vector), v.dims)
	}
	if q.Limit <= 0 {
		return []domain.SearchHit{}, nil
	}

	v.mu.RLock()
	hits := make([]domain.SearchHit, 0, len(v.chunks))
	for _, c := range v.chunks {
		if q.DocumentID != "" && c.DocumentID != q.DocumentID {
			continue
		}
		score := domain.CosineSimilarity(vector, c.Vector)
		if q.Threshold != nil && score < *q.Threshold {
			continue
		}
		hits = append(hits, domain.SearchHit{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Index:      c.Index,
			Content:    c.Content,
			Score:      score,
			Metadata:   maps.Clone(c.Metadata),
		})
	}
	v.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

// DeleteByDocument removes every chunk of a document.
func (v *VectorIndex) DeleteByDocument(_ context.Context, documentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, c := range v.chunks {
		if c.DocumentID == documentID {
			delete(v.chunks, id)
		}
	}
	return nil
}

// Count returns the number of chunks for a document, or all chunks when empty.
func (v *VectorIndex) Count(_ context.Context, documentID string) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if documentID == "" {
		return len(v.chunks), nil
	}
	n := 0
	for _, c := range v.chunks {
		if c.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

// Stats describes the collection.
func (v *VectorIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	n, _ := v.Count(ctx, "")
	return domain.IndexStats{
		Backend:    string(domain.VectorBackendMemory),
		Collection: v.collection,
		Dimensions: v.dims,
		Metric:     domain.MetricCosine,
		Count:      n,
	}, nil
}

// Dimensions returns the configured vector size.
func (v *VectorIndex) Dimensions() int {
	return v.dims
}

// Ping always succeeds.
func (v *VectorIndex) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (v *VectorIndex) Close() error {
	return nil
}
