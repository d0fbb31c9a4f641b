// Package chroma provides a vector index backed by a Chroma server.
package chroma

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// DefaultURL is the local Chroma endpoint.
const DefaultURL = "http://localhost:8000"

// records is the slice of the Chroma collection API the index needs,
// expressed in domain terms.
type records interface {
	open(ctx context.Context) (dims int, err error)
	upsert(ctx context.Context, chunks []domain.DocumentChunk) error
	query(ctx context.Context, vector []float32, limit int, documentID string) ([]domain.SearchHit, error)
	deleteDocument(ctx context.Context, documentID string) error
	count(ctx context.Context, documentID string) (int, error)
	close() error
}

// Config holds configuration for the Chroma index.
type Config struct {
	// URL is the Chroma endpoint (default: http://localhost:8000).
	URL string

	// Collection is the collection name (default: readwise_documents).
	Collection string

	// Dimensions is the expected vector size.
	Dimensions int
}

// VectorIndex stores chunks in a Chroma collection using cosine space.
type VectorIndex struct {
	records    records
	collection string
	dims       int
}

// NewVectorIndex creates a Chroma-backed index. The connection is made by
// Initialize.
func NewVectorIndex(cfg Config) (*VectorIndex, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Collection == "" {
		cfg.Collection = domain.DefaultCollection
	}
	recs, err := newChromaRecords(cfg.URL, cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("%w: chroma: %w", domain.ErrIndexUnavailable, err)
	}
	return newWithRecords(recs, cfg), nil
}

func newWithRecords(recs records, cfg Config) *VectorIndex {
	if cfg.Collection == "" {
		cfg.Collection = domain.DefaultCollection
	}
	return &VectorIndex{records: recs, collection: cfg.Collection, dims: cfg.Dimensions}
}

// Initialize gets or creates the collection. A collection that already
// holds vectors of another size fails with domain.ErrDimensionMismatch.
func (v *VectorIndex) Initialize(ctx context.Context) error {
	dims, err := v.records.open(ctx)
	if err != nil {
		return fmt.Errorf("%w: chroma: %w", domain.ErrIndexUnavailable, err)
	}
	if dims > 0 && dims != v.dims {
		return fmt.Errorf("%w: collection %q has %d dimensions, configured %d",
			domain.ErrDimensionMismatch, v.collection, dims, v.dims)
	}
	return nil
}

// Upsert writes chunks. Chunks with the wrong vector size are skipped.
func (v *VectorIndex) Upsert(ctx context.Context, chunks []domain.DocumentChunk) (domain.UpsertResult, error) {
	var res domain.UpsertResult
	valid := make([]domain.DocumentChunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Vector) != v.dims {
			res.Skipped = append(res.Skipped, c.ID)
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return res, nil
	}

	if err := v.records.upsert(ctx, valid); err != nil {
		return domain.UpsertResult{}, fmt.Errorf("%w: chroma upsert: %w", domain.ErrIndexUnavailable, err)
	}
	res.Stored = len(valid)
	return res, nil
}

// Search queries the collection and applies the optional threshold.
func (v *VectorIndex) Search(ctx context.Context, vector []float32, q domain.VectorQuery) ([]domain.SearchHit, error) {
	if len(vector) != v.dims {
		return nil, fmt.Errorf("%w: query has %d components, index has %d",
			domain.ErrDimensionMismatch, len(vector), v.dims)
	}
	if q.Limit <= 0 {
		return []domain.SearchHit{}, nil
	}

	hits, err := v.records.query(ctx, vector, q.Limit, q.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("%w: chroma query: %w", domain.ErrIndexUnavailable, err)
	}

	out := make([]domain.SearchHit, 0, len(hits))
	for _, h := range hits {
		if q.Threshold != nil && h.Score < *q.Threshold {
			continue
		}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// DeleteByDocument removes every chunk of a document.
func (v *VectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := v.records.deleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("%w: chroma delete: %w", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Count returns the number of chunks for a document, or the collection.
func (v *VectorIndex) Count(ctx context.Context, documentID string) (int, error) {
	n, err := v.records.count(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("%w: chroma count: %w", domain.ErrIndexUnavailable, err)
	}
	return n, nil
}

// Stats describes the collection.
func (v *VectorIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	n, err := v.Count(ctx, "")
	if err != nil {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{
		Backend:    string(domain.VectorBackendChroma),
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

// Ping counts the collection, which requires a live server.
func (v *VectorIndex) Ping(ctx context.Context) error {
	_, err := v.Count(ctx, "")
	return err
}

// Close releases the client.
func (v *VectorIndex) Close() error {
	return v.records.close()
}
