// Package qdrant provides a vector index backed by a Qdrant server over its
// REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/logger"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// Default configuration values.
const (
	DefaultURL     = "http://localhost:6333"
	DefaultTimeout = 30 * time.Second
)

// Payload keys written with every point.
const (
	payloadChunkID    = "chunk_id"
	payloadDocumentID = "document_id"
	payloadIndex      = "chunk_index"
	payloadContent    = "content"
	payloadStart      = "start_char"
	payloadEnd        = "end_char"
	payloadMetadata   = "metadata"
	payloadCreatedAt  = "created_at"
)

// errCollectionMissing is returned by collectionSize when the collection
// does not exist yet.
var errCollectionMissing = errors.New("collection not found")

// Config holds configuration for the Qdrant index.
type Config struct {
	// URL is the REST endpoint (default: http://localhost:6333).
	URL string

	// APIKey is sent as the api-key header for hosted clusters.
	APIKey string

	// Collection is the collection name (default: readwise_documents).
	Collection string

	// Dimensions is the vector size the collection is created with.
	Dimensions int

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// VectorIndex stores chunks as Qdrant points with cosine distance.
type VectorIndex struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	collection string
	dims       int
}

// NewVectorIndex creates a Qdrant-backed index. No request is made until
// Initialize or Ping.
func NewVectorIndex(cfg Config) *VectorIndex {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Collection == "" {
		cfg.Collection = domain.DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &VectorIndex{
		client:     client,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dims:       cfg.Dimensions,
	}
}

// Initialize creates the collection with cosine distance if it is absent.
// An existing collection with another vector size fails with
// domain.ErrDimensionMismatch.
func (v *VectorIndex) Initialize(ctx context.Context) error {
	size, err := v.collectionSize(ctx)
	switch {
	case errors.Is(err, errCollectionMissing):
		body := map[string]any{
			"vectors": map[string]any{"size": v.dims, "distance": "Cosine"},
		}
		if err := v.do(ctx, http.MethodPut, v.collectionPath(""), body, nil); err != nil {
			return err
		}
		logger.Info("qdrant: created collection %s (%d dimensions)", v.collection, v.dims)
		return nil
	case err != nil:
		return err
	case size != v.dims:
		return fmt.Errorf("%w: collection %q has %d dimensions, configured %d",
			domain.ErrDimensionMismatch, v.collection, size, v.dims)
	default:
		logger.Debug("qdrant: collection %s exists", v.collection)
		return nil
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Upsert writes chunks as points. Chunks with the wrong vector size are skipped.
func (v *VectorIndex) Upsert(ctx context.Context, chunks []domain.DocumentChunk) (domain.UpsertResult, error) {
	var res domain.UpsertResult
	if len(chunks) == 0 {
		return res, nil
	}

	points := make([]point, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Vector) != v.dims {
			res.Skipped = append(res.Skipped, c.ID)
			continue
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		metadata := c.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		points = append(points, point{
			ID:     pointID(c.ID),
			Vector: c.Vector,
			Payload: map[string]any{
				payloadChunkID:    c.ID,
				payloadDocumentID: c.DocumentID,
				payloadIndex:      c.Index,
				payloadContent:    c.Content,
				payloadStart:      c.StartChar,
				payloadEnd:        c.EndChar,
				payloadMetadata:   metadata,
				payloadCreatedAt:  createdAt.UTC().Format(time.RFC3339),
			},
		})
	}
	if len(points) == 0 {
		return res, nil
	}

	if err := v.do(ctx, http.MethodPut, v.collectionPath("/points?wait=true"),
		map[string]any{"points": points}, nil); err != nil {
		return domain.UpsertResult{}, err
	}
	res.Stored = len(points)
	return res, nil
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Search runs a cosine search, optionally filtered to one document.
func (v *VectorIndex) Search(ctx context.Context, vector []float32, q domain.VectorQuery) ([]domain.SearchHit, error) {
	if len(vector) != v.dims {
		return nil, fmt.Errorf("%w: query has %d components, index has %d",
			domain.ErrDimensionMismatch, len(vector), v.dims)
	}
	if q.Limit <= 0 {
		return []domain.SearchHit{}, nil
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        q.Limit,
		"with_payload": true,
	}
	if q.DocumentID != "" {
		body["filter"] = documentFilter(q.DocumentID)
	}
	if q.Threshold != nil {
		body["score_threshold"] = *q.Threshold
	}

	var out struct {
		Result []scoredPoint `json:"result"`
	}
	if err := v.do(ctx, http.MethodPost, v.collectionPath("/points/search"), body, &out); err != nil {
		return nil, err
	}

	hits := make([]domain.SearchHit, 0, len(out.Result))
	for _, p := range out.Result {
		hits = append(hits, hitFromPayload(p))
	}
	return hits, nil
}

// DeleteByDocument removes every point of a document.
func (v *VectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	return v.do(ctx, http.MethodPost, v.collectionPath("/points/delete?wait=true"),
		map[string]any{"filter": documentFilter(documentID)}, nil)
}

// Count returns an exact point count for a document, or the collection.
func (v *VectorIndex) Count(ctx context.Context, documentID string) (int, error) {
	body := map[string]any{"exact": true}
	if documentID != "" {
		body["filter"] = documentFilter(documentID)
	}

	var out struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := v.do(ctx, http.MethodPost, v.collectionPath("/points/count"), body, &out); err != nil {
		return 0, err
	}
	return out.Result.Count, nil
}

// Stats describes the collection.
func (v *VectorIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	n, err := v.Count(ctx, "")
	if err != nil {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{
		Backend:    string(domain.VectorBackendQdrant),
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

// Ping lists collections to validate connectivity and credentials.
func (v *VectorIndex) Ping(ctx context.Context) error {
	return v.do(ctx, http.MethodGet, "/collections", nil, nil)
}

// Close releases idle connections.
func (v *VectorIndex) Close() error {
	v.client.CloseIdleConnections()
	return nil
}

func (v *VectorIndex) collectionPath(suffix string) string {
	return "/collections/" + url.PathEscape(v.collection) + suffix
}

// collectionSize returns the configured vector size of the collection.
func (v *VectorIndex) collectionSize(ctx context.Context) (int, error) {
	var out struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := v.do(ctx, http.MethodGet, v.collectionPath(""), nil, &out)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return 0, errCollectionMissing
	}
	if err != nil {
		return 0, err
	}
	return out.Result.Config.Params.Vectors.Size, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

// do sends a JSON request and decodes the response into out when non-nil.
// Every failure wraps domain.ErrIndexUnavailable.
func (v *VectorIndex) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("qdrant: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("qdrant: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if v.apiKey != "" {
		req.Header.Set("api-key", v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: qdrant: %w", domain.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: qdrant %s %s: %w", domain.ErrIndexUnavailable, method, path,
			&statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))})
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: qdrant: decode response: %w", domain.ErrIndexUnavailable, err)
	}
	return nil
}

func documentFilter(documentID string) map[string]any {
	return map[string]any{
		"must": []any{
			map[string]any{
				"key":   payloadDocumentID,
				"match": map[string]any{"value": documentID},
			},
		},
	}
}

// pointID maps a chunk ID onto the UUID space Qdrant requires. UUIDs pass
// through; anything else is hashed deterministically.
func pointID(chunkID string) string {
	if id, err := uuid.Parse(chunkID); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

func hitFromPayload(p scoredPoint) domain.SearchHit {
	hit := domain.SearchHit{
		ChunkID:    stringField(p.Payload, payloadChunkID),
		DocumentID: stringField(p.Payload, payloadDocumentID),
		Index:      intField(p.Payload, payloadIndex),
		Content:    stringField(p.Payload, payloadContent),
		Score:      p.Score,
	}
	if hit.ChunkID == "" {
		hit.ChunkID = fmt.Sprint(p.ID)
	}
	if m, ok := p.Payload[payloadMetadata].(map[string]any); ok && len(m) > 0 {
		hit.Metadata = m
	}
	return hit
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]any, key string) int {
	switch n := m[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
