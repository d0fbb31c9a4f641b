package chroma

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/logger"
)

// Metadata attribute names. Chroma metadata is flat, so chunk metadata is
// carried as a JSON string.
const (
	attrDocumentID = "document_id"
	attrIndex      = "chunk_index"
	attrStart      = "start_char"
	attrEnd        = "end_char"
	attrCreatedAt  = "created_at"
	attrMetadata   = "metadata_json"
)

// chromaRecords implements records with the chroma-go v2 client.
type chromaRecords struct {
	client chromago.Client
	name   string

	mu         sync.Mutex
	collection chromago.Collection
}

func newChromaRecords(url, name string) (*chromaRecords, error) {
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(url))
	if err != nil {
		return nil, err
	}
	return &chromaRecords{client: client, name: name}, nil
}

func (r *chromaRecords) open(ctx context.Context) (int, error) {
	col, err := r.client.GetOrCreateCollection(ctx, r.name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("hnsw:space", "cosine"),
				chromago.NewStringAttribute("created_by", "libris"),
			),
		),
	)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.collection = col
	r.mu.Unlock()
	logger.Debug("chroma: using collection %s", r.name)
	return col.Dimension(), nil
}

func (r *chromaRecords) current() (chromago.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.collection == nil {
		return nil, fmt.Errorf("collection %s is not initialised", r.name)
	}
	return r.collection, nil
}

func (r *chromaRecords) upsert(ctx context.Context, chunks []domain.DocumentChunk) error {
	col, err := r.current()
	if err != nil {
		return err
	}

	ids := make([]chromago.DocumentID, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	embs := make([]embeddings.Embedding, 0, len(chunks))
	metas := make([]chromago.DocumentMetadata, 0, len(chunks))
	for _, c := range chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", c.ID, err)
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		ids = append(ids, chromago.DocumentID(c.ID))
		texts = append(texts, c.Content)
		embs = append(embs, embeddings.NewEmbeddingFromFloat32(c.Vector))
		metas = append(metas, chromago.NewDocumentMetadata(
			chromago.NewStringAttribute(attrDocumentID, c.DocumentID),
			chromago.NewIntAttribute(attrIndex, int64(c.Index)),
			chromago.NewIntAttribute(attrStart, int64(c.StartChar)),
			chromago.NewIntAttribute(attrEnd, int64(c.EndChar)),
			chromago.NewStringAttribute(attrCreatedAt, createdAt.UTC().Format(time.RFC3339)),
			chromago.NewStringAttribute(attrMetadata, string(metaJSON)),
		))
	}

	return col.Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
}

func (r *chromaRecords) query(ctx context.Context, vector []float32, limit int, documentID string) ([]domain.SearchHit, error) {
	col, err := r.current()
	if err != nil {
		return nil, err
	}

	opts := []chromago.CollectionQueryOption{
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chromago.WithNResults(limit),
	}
	if documentID != "" {
		opts = append(opts, chromago.WithWhereQuery(chromago.EqString(attrDocumentID, documentID)))
	}

	results, err := col.Query(ctx, opts...)
	if err != nil {
		return nil, err
	}

	idGroups := results.GetIDGroups()
	if len(idGroups) == 0 {
		return nil, nil
	}
	docs := results.GetDocumentsGroups()
	metas := results.GetMetadatasGroups()
	dists := results.GetDistancesGroups()

	hits := make([]domain.SearchHit, 0, len(idGroups[0]))
	for i, id := range idGroups[0] {
		hit := domain.SearchHit{ChunkID: string(id)}
		if len(docs) > 0 && i < len(docs[0]) && docs[0][i] != nil {
			hit.Content = docs[0][i].ContentString()
		}
		if len(dists) > 0 && i < len(dists[0]) {
			// Cosine space reports distance = 1 - similarity.
			hit.Score = 1 - float64(dists[0][i])
		}
		if len(metas) > 0 && i < len(metas[0]) && metas[0][i] != nil {
			applyAttributes(&hit, flattenMetadata(metas[0][i]))
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (r *chromaRecords) deleteDocument(ctx context.Context, documentID string) error {
	col, err := r.current()
	if err != nil {
		return err
	}
	return col.Delete(ctx, chromago.WithWhereDelete(chromago.EqString(attrDocumentID, documentID)))
}

func (r *chromaRecords) count(ctx context.Context, documentID string) (int, error) {
	col, err := r.current()
	if err != nil {
		return 0, err
	}
	if documentID == "" {
		return col.Count(ctx)
	}
	results, err := col.Get(ctx, chromago.WithWhereGet(chromago.EqString(attrDocumentID, documentID)))
	if err != nil {
		return 0, err
	}
	return len(results.GetIDs()), nil
}

func (r *chromaRecords) close() error {
	return r.client.Close()
}

// flattenMetadata converts Chroma document metadata into a plain map via
// its JSON form, which is the only exported view of its values.
func flattenMetadata(meta any) map[string]any {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// applyAttributes copies stored attributes onto a hit.
func applyAttributes(hit *domain.SearchHit, attrs map[string]any) {
	if attrs == nil {
		return
	}
	if s, ok := attrs[attrDocumentID].(string); ok {
		hit.DocumentID = s
	}
	if n, ok := attrs[attrIndex].(float64); ok {
		hit.Index = int(n)
	}
	if s, ok := attrs[attrMetadata].(string); ok && s != "" && s != "null" {
		var m map[string]any
		if err := json.Unmarshal([]byte(s), &m); err == nil && len(m) > 0 {
			hit.Metadata = m
		}
	}
}
