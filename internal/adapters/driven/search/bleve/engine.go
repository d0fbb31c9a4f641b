// Package bleve provides the keyword index used by hybrid retrieval.
package bleve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	blevesearch "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/logger"
)

// Ensure Engine implements the interface.
var _ driven.SearchEngine = (*Engine)(nil)

// Indexed field names.
const (
	fieldDocumentID = "document_id"
	fieldContent    = "content"
	fieldIndex      = "chunk_index"
	fieldMetadata   = "metadata"
)

// deletePageSize bounds how many chunk IDs are collected per delete pass.
const deletePageSize = 500

// Engine is a bleve index of chunk contents keyed by chunk ID.
type Engine struct {
	mu    sync.RWMutex
	index blevesearch.Index
	path  string
}

// NewEngine opens the index at path, creating it if missing. An empty path
// gives an in-memory index.
func NewEngine(path string) (*Engine, error) {
	if path == "" {
		idx, err := blevesearch.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory keyword index: %w", err)
		}
		return &Engine{index: idx}, nil
	}

	idx, err := blevesearch.Open(path)
	if errors.Is(err, blevesearch.ErrorIndexPathDoesNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create keyword index directory: %w", err)
		}
		idx, err = blevesearch.New(path, newMapping())
		if err != nil {
			return nil, fmt.Errorf("create keyword index: %w", err)
		}
		logger.Debug("created keyword index at %s", path)
	} else if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}

	return &Engine{index: idx, path: path}, nil
}

func newMapping() mapping.IndexMapping {
	docMapping := blevesearch.NewDocumentMapping()

	docID := blevesearch.NewKeywordFieldMapping()
	docID.Store = true
	docMapping.AddFieldMappingsAt(fieldDocumentID, docID)

	content := blevesearch.NewTextFieldMapping()
	content.Store = true
	docMapping.AddFieldMappingsAt(fieldContent, content)

	index := blevesearch.NewNumericFieldMapping()
	index.Store = true
	docMapping.AddFieldMappingsAt(fieldIndex, index)

	metadata := blevesearch.NewTextFieldMapping()
	metadata.Index = false
	metadata.Store = true
	docMapping.AddFieldMappingsAt(fieldMetadata, metadata)

	m := blevesearch.NewIndexMapping()
	m.DefaultMapping = docMapping
	return m
}

// Index adds or replaces chunks in one batch.
func (e *Engine) Index(ctx context.Context, chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	batch := e.index.NewBatch()
	for _, c := range chunks {
		doc := map[string]any{
			fieldDocumentID: c.DocumentID,
			fieldContent:    c.Content,
			fieldIndex:      float64(c.Index),
		}
		if len(c.Metadata) > 0 {
			data, err := json.Marshal(c.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for %s: %w", c.ID, err)
			}
			doc[fieldMetadata] = string(data)
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("batch chunk %s: %w", c.ID, err)
		}
	}
	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	return nil
}

// DeleteByDocument removes every chunk of a document.
func (e *Engine) DeleteByDocument(ctx context.Context, documentID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req := blevesearch.NewSearchRequestOptions(documentQuery(documentID), deletePageSize, 0, false)
		res, err := e.index.Search(req)
		if err != nil {
			return fmt.Errorf("find chunks of %s: %w", documentID, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}

		batch := e.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := e.index.Batch(batch); err != nil {
			return fmt.Errorf("delete chunks of %s: %w", documentID, err)
		}
	}
}

// Search matches query against chunk contents, optionally within one
// document. Scores are bleve relevance scores, not similarities.
func (e *Engine) Search(ctx context.Context, text, documentID string, limit int) ([]domain.SearchHit, error) {
	if limit <= 0 || text == "" {
		return []domain.SearchHit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	match := blevesearch.NewMatchQuery(text)
	match.SetField(fieldContent)
	var q query.Query = match
	if documentID != "" {
		q = blevesearch.NewConjunctionQuery(match, documentQuery(documentID))
	}

	req := blevesearch.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{fieldDocumentID, fieldContent, fieldIndex, fieldMetadata}

	e.mu.RLock()
	res, err := e.index.SearchInContext(ctx, req)
	e.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := domain.SearchHit{ChunkID: h.ID, Score: h.Score}
		if s, ok := h.Fields[fieldDocumentID].(string); ok {
			hit.DocumentID = s
		}
		if s, ok := h.Fields[fieldContent].(string); ok {
			hit.Content = s
		}
		if n, ok := h.Fields[fieldIndex].(float64); ok {
			hit.Index = int(n)
		}
		if s, ok := h.Fields[fieldMetadata].(string); ok && s != "" {
			var m map[string]any
			if err := json.Unmarshal([]byte(s), &m); err == nil {
				hit.Metadata = m
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// DocCount returns the number of indexed chunks.
func (e *Engine) DocCount() (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index.DocCount()
}

// Path returns the on-disk location, empty for in-memory indexes.
func (e *Engine) Path() string {
	return e.path
}

// Close releases the index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Close()
}

func documentQuery(documentID string) query.Query {
	term := blevesearch.NewTermQuery(documentID)
	term.SetField(fieldDocumentID)
	return term
}
