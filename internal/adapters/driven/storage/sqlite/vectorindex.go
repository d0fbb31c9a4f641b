package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is one named collection inside a Store.
type VectorIndex struct {
	store      *Store
	owned      bool
	collection string
	dims       int
}

// VectorIndex returns a collection view over this store. Closing the view
// does not close the store.
func (s *Store) VectorIndex(collection string, dims int) *VectorIndex {
	if collection == "" {
		collection = domain.DefaultCollection
	}
	return &VectorIndex{store: s, collection: collection, dims: dims}
}

// OpenVectorIndex opens a dedicated store at dbPath and returns a
// collection that closes the store when it is closed.
func OpenVectorIndex(dbPath, collection string, dims int) (*VectorIndex, error) {
	store, err := NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	idx := store.VectorIndex(collection, dims)
	idx.owned = true
	return idx, nil
}

// Initialize creates the collection row. Reopening a collection with a
// different dimension fails with domain.ErrDimensionMismatch.
func (v *VectorIndex) Initialize(ctx context.Context) error {
	if v.dims <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, v.dims)
	}

	_, err := v.store.db.ExecContext(ctx, `
		INSERT INTO collections (name, dimensions, metric)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, v.collection, v.dims, domain.MetricCosine)
	if err != nil {
		return fmt.Errorf("%w: creating collection: %w", domain.ErrIndexUnavailable, err)
	}

	var existing int
	err = v.store.db.QueryRowContext(ctx,
		"SELECT dimensions FROM collections WHERE name = ?", v.collection).Scan(&existing)
	if err != nil {
		return fmt.Errorf("%w: reading collection: %w", domain.ErrIndexUnavailable, err)
	}
	if existing != v.dims {
		return fmt.Errorf("%w: collection %q was created with %d dimensions, configured %d",
			domain.ErrDimensionMismatch, v.collection, existing, v.dims)
	}
	return nil
}

// Upsert writes chunks in one transaction. Chunks with the wrong vector
// size are skipped.
func (v *VectorIndex) Upsert(ctx context.Context, chunks []domain.DocumentChunk) (domain.UpsertResult, error) {
	var res domain.UpsertResult
	if len(chunks) == 0 {
		return res, nil
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("%w: beginning transaction: %w", domain.ErrIndexUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, collection, document_id, chunk_index, content,
			start_char, end_char, vector, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			document_id = excluded.document_id,
			chunk_index = excluded.chunk_index,
			content = excluded.content,
			start_char = excluded.start_char,
			end_char = excluded.end_char,
			vector = excluded.vector,
			metadata = excluded.metadata,
			created_at = excluded.created_at
	`)
	if err != nil {
		return res, fmt.Errorf("%w: preparing statement: %w", domain.ErrIndexUnavailable, err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if len(c.Vector) != v.dims {
			res.Skipped = append(res.Skipped, c.ID)
			continue
		}

		metadataJSON, err := marshalMetadata(c.Metadata)
		if err != nil {
			return domain.UpsertResult{}, fmt.Errorf("marshalling chunk %s metadata: %w", c.ID, err)
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		if _, err := stmt.ExecContext(ctx, c.ID, v.collection, c.DocumentID, c.Index, c.Content,
			c.StartChar, c.EndChar, float32SliceToBytes(c.Vector), metadataJSON, createdAt.UTC()); err != nil {
			return domain.UpsertResult{}, fmt.Errorf("%w: saving chunk %s: %w", domain.ErrIndexUnavailable, c.ID, err)
		}
		res.Stored++
	}

	if err := tx.Commit(); err != nil {
		return domain.UpsertResult{}, fmt.Errorf("%w: committing transaction: %w", domain.ErrIndexUnavailable, err)
	}
	return res, nil
}

// Search scans the collection (or one document) and returns the best
// matches by cosine similarity.
func (v *VectorIndex) Search(ctx context.Context, vector []float32, q domain.VectorQuery) ([]domain.SearchHit, error) {
	if len(vector) != v.dims {
		return nil, fmt.Errorf("%w: query has %d components, index has %d",
			domain.ErrDimensionMismatch, len(vector), v.dims)
	}
	if q.Limit <= 0 {
		return []domain.SearchHit{}, nil
	}

	query := `SELECT id, document_id, chunk_index, content, vector, metadata
		FROM chunks WHERE collection = ?`
	args := []any{v.collection}
	if q.DocumentID != "" {
		query += " AND document_id = ?"
		args = append(args, q.DocumentID)
	}

	rows, err := v.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying chunks: %w", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	hits := make([]domain.SearchHit, 0)
	for rows.Next() {
		var (
			hit          domain.SearchHit
			blob         []byte
			metadataJSON string
		)
		if err := rows.Scan(&hit.ChunkID, &hit.DocumentID, &hit.Index, &hit.Content, &blob, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}

		stored := bytesToFloat32Slice(blob)
		if len(stored) != v.dims {
			continue
		}
		hit.Score = domain.CosineSimilarity(vector, stored)
		if q.Threshold != nil && hit.Score < *q.Threshold {
			continue
		}
		hit.Metadata = unmarshalMetadata(metadataJSON)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

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
func (v *VectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := v.store.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE collection = ? AND document_id = ?", v.collection, documentID)
	if err != nil {
		return fmt.Errorf("%w: deleting chunks: %w", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Count returns the number of chunks for a document, or all chunks when empty.
func (v *VectorIndex) Count(ctx context.Context, documentID string) (int, error) {
	var (
		n   int
		err error
	)
	if documentID == "" {
		err = v.store.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM chunks WHERE collection = ?", v.collection).Scan(&n)
	} else {
		err = v.store.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM chunks WHERE collection = ? AND document_id = ?",
			v.collection, documentID).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %w", domain.ErrIndexUnavailable, err)
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
		Backend:    string(domain.VectorBackendSQLite),
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

// Ping checks the database connection.
func (v *VectorIndex) Ping(ctx context.Context) error {
	if err := v.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Close closes the store if this index opened it.
func (v *VectorIndex) Close() error {
	if v.owned {
		return v.store.Close()
	}
	return nil
}

func marshalMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMetadata(s string) map[string]any {
	if s == "" || s == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
