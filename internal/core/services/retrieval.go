package services

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/logger"
)

// rrfK is the reciprocal rank fusion constant.
const rrfK = 60

// RetrievalService owns ingestion and similarity retrieval.
type RetrievalService struct {
	embedder *EmbeddingProvider
	index    driven.VectorIndex
	pipeline driven.PostProcessorPipeline
	keyword  driven.SearchEngine
	mode     domain.RetrievalMode
	topK     int
	now      func() time.Time
}

// RetrievalOption configures a RetrievalService.
type RetrievalOption func(*RetrievalService)

// WithKeywordIndex enables keyword indexing. Hybrid mode fuses keyword
// hits with vector hits at query time.
func WithKeywordIndex(engine driven.SearchEngine, mode domain.RetrievalMode) RetrievalOption {
	return func(s *RetrievalService) {
		s.keyword = engine
		if mode.IsValid() {
			s.mode = mode
		}
	}
}

// WithDefaultTopK sets the result count used when callers pass topK <= 0.
func WithDefaultTopK(k int) RetrievalOption {
	return func(s *RetrievalService) {
		if k > 0 {
			s.topK = k
		}
	}
}

// NewRetrievalService creates a retrieval service.
func NewRetrievalService(
	embedder *EmbeddingProvider,
	index driven.VectorIndex,
	pipeline driven.PostProcessorPipeline,
	opts ...RetrievalOption,
) *RetrievalService {
	s := &RetrievalService{
		embedder: embedder,
		index:    index,
		pipeline: pipeline,
		mode:     domain.RetrievalModeVector,
		topK:     domain.DefaultTopK,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// chunkedDocument is the output of the chunking stage.
type chunkedDocument struct {
	doc    domain.Document
	chunks []domain.DocumentChunk
}

// embeddedDocument pairs each chunk with its vector.
type embeddedDocument struct {
	chunkedDocument
	vectors [][]float32
}

// Ingest replaces the indexed chunks of doc.
// Previous chunks are deleted first; a failed delete aborts ingestion.
// Chunks whose embedding failed or has the wrong dimension are skipped
// and counted, and the outcome is then degraded.
func (s *RetrievalService) Ingest(ctx context.Context, doc domain.Document) (domain.IngestResult, error) {
	start := s.now()
	result := domain.IngestResult{DocumentID: doc.ID, Outcome: domain.OutcomeFailed}

	if strings.TrimSpace(doc.ID) == "" {
		return result, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	logger.Section("Ingest " + doc.ID)

	if err := s.index.DeleteByDocument(ctx, doc.ID); err != nil {
		return result, fmt.Errorf("ingest %s: delete previous chunks: %w", doc.ID, err)
	}
	if s.keyword != nil {
		if err := s.keyword.DeleteByDocument(ctx, doc.ID); err != nil {
			logger.Warn("keyword index delete for %s failed: %v", doc.ID, err)
		}
	}

	chunked, err := s.chunk(ctx, doc)
	if err != nil {
		return result, fmt.Errorf("ingest %s: %w", doc.ID, err)
	}
	result.Chunks = len(chunked.chunks)
	if result.Chunks == 0 {
		logger.Debug("document %s produced no chunks", doc.ID)
		result.Outcome = domain.OutcomeSuccess
		result.Duration = s.now().Sub(start)
		return result, nil
	}

	embedded, err := s.embed(ctx, chunked)
	if err != nil {
		return result, fmt.Errorf("ingest %s: embed: %w", doc.ID, err)
	}

	ready, skipped := s.stamp(embedded)
	upserted, err := s.index.Upsert(ctx, ready)
	if err != nil {
		return result, fmt.Errorf("ingest %s: upsert: %w", doc.ID, err)
	}

	if s.keyword != nil {
		if err := s.keyword.Index(ctx, ready); err != nil {
			logger.Warn("keyword index update for %s failed: %v", doc.ID, err)
		}
	}

	result.Indexed = upserted.Stored
	result.Skipped = skipped + len(upserted.Skipped)
	result.Outcome = domain.OutcomeSuccess
	if result.Skipped > 0 {
		result.Outcome = domain.OutcomeDegraded
	}
	result.Duration = s.now().Sub(start)

	logger.Info("ingested %s: %d chunks, %d indexed, %d skipped",
		doc.ID, result.Chunks, result.Indexed, result.Skipped)
	return result, nil
}

func (s *RetrievalService) chunk(ctx context.Context, doc domain.Document) (chunkedDocument, error) {
	chunks, err := s.pipeline.Process(ctx, &doc)
	if err != nil {
		return chunkedDocument{}, fmt.Errorf("chunk: %w", err)
	}
	logger.Debug("chunked %s into %d chunks", doc.ID, len(chunks))
	return chunkedDocument{doc: doc, chunks: chunks}, nil
}

func (s *RetrievalService) embed(ctx context.Context, in chunkedDocument) (embeddedDocument, error) {
	texts := make([]string, len(in.chunks))
	for i, c := range in.chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return embeddedDocument{}, err
	}
	return embeddedDocument{chunkedDocument: in, vectors: vectors}, nil
}

// stamp builds the final chunks: ids, ordinals, contiguous offsets,
// inherited metadata and vectors. Chunks without a usable vector are left out.
func (s *RetrievalService) stamp(in embeddedDocument) ([]domain.DocumentChunk, int) {
	now := s.now()
	dims := s.embedder.Dimensions()
	out := make([]domain.DocumentChunk, 0, len(in.chunks))
	skipped := 0
	offset := 0

	for i, c := range in.chunks {
		length := len([]rune(c.Content))
		chunk := domain.DocumentChunk{
			ID:         uuid.New().String(),
			DocumentID: in.doc.ID,
			Index:      i,
			Content:    c.Content,
			StartChar:  offset,
			EndChar:    offset + length,
			Vector:     in.vectors[i],
			Metadata:   chunkMetadata(in.doc, c.Metadata),
			CreatedAt:  now,
		}
		offset += length

		if len(chunk.Vector) != dims || domain.IsZeroVector(chunk.Vector) {
			logger.Warn("chunk %d of %s has no usable embedding, skipping", i, in.doc.ID)
			skipped++
			continue
		}
		out = append(out, chunk)
	}
	return out, skipped
}

func chunkMetadata(doc domain.Document, own map[string]any) map[string]any {
	meta := make(map[string]any, len(doc.Metadata)+len(own)+2)
	maps.Copy(meta, doc.Metadata)
	maps.Copy(meta, own)
	meta["document_id"] = doc.ID
	if doc.Title != "" {
		meta["title"] = doc.Title
	}
	return meta
}

// Retrieve returns the topK chunks most similar to query.
// No score threshold is applied.
func (s *RetrievalService) Retrieve(ctx context.Context, query, documentID string, topK int) ([]domain.ContextChunk, error) {
	return s.RetrieveWithThreshold(ctx, query, documentID, topK, nil)
}

// RetrieveWithThreshold is Retrieve with an optional minimum score.
func (s *RetrievalService) RetrieveWithThreshold(
	ctx context.Context, query, documentID string, topK int, threshold *float64,
) ([]domain.ContextChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = s.topK
	}

	vec, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	q := domain.VectorQuery{Limit: topK, DocumentID: documentID, Threshold: threshold}

	var hits []domain.SearchHit
	if s.mode == domain.RetrievalModeHybrid && s.keyword != nil {
		hits, err = s.hybrid(ctx, query, vec, q)
	} else {
		hits, err = s.index.Search(ctx, vec, q)
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	out := make([]domain.ContextChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.ToContext())
	}
	logger.Debug("retrieved %d chunks for %q (doc=%q, top_k=%d)", len(out), query, documentID, topK)
	return out, nil
}

// hybrid runs vector and keyword searches in parallel and fuses them with
// reciprocal rank fusion. Fused hits keep their vector similarity as
// score; keyword-only hits score 0.
func (s *RetrievalService) hybrid(
	ctx context.Context, query string, vec []float32, q domain.VectorQuery,
) ([]domain.SearchHit, error) {
	wide := q
	wide.Limit = q.Limit * 2

	var (
		vectorHits, keywordHits []domain.SearchHit
		vectorErr, keywordErr   error
		wg                      sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorHits, vectorErr = s.index.Search(ctx, vec, wide)
	}()
	go func() {
		defer wg.Done()
		keywordHits, keywordErr = s.keyword.Search(ctx, query, q.DocumentID, wide.Limit)
	}()
	wg.Wait()

	if vectorErr != nil {
		return nil, vectorErr
	}
	if keywordErr != nil {
		logger.Warn("keyword search failed, using vector results only: %v", keywordErr)
		return truncateHits(vectorHits, q.Limit), nil
	}

	fused := reciprocalRankFusion(vectorHits, keywordHits, rrfK)
	if q.Threshold != nil {
		kept := fused[:0]
		for _, h := range fused {
			if h.Score >= *q.Threshold {
				kept = append(kept, h)
			}
		}
		fused = kept
	}
	return truncateHits(fused, q.Limit), nil
}

// reciprocalRankFusion merges two ranked lists. Vector hits are
// authoritative for content and score.
func reciprocalRankFusion(vectorHits, keywordHits []domain.SearchHit, k int) []domain.SearchHit {
	fusion := make(map[string]float64)
	byID := make(map[string]domain.SearchHit)

	for rank, h := range vectorHits {
		fusion[h.ChunkID] += 1.0 / float64(k+rank+1)
		byID[h.ChunkID] = h
	}
	for rank, h := range keywordHits {
		fusion[h.ChunkID] += 1.0 / float64(k+rank+1)
		if _, ok := byID[h.ChunkID]; !ok {
			h.Score = 0
			byID[h.ChunkID] = h
		}
	}

	out := make([]domain.SearchHit, 0, len(byID))
	for _, h := range byID {
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		fi, fj := fusion[out[i].ChunkID], fusion[out[j].ChunkID]
		if fi != fj {
			return fi > fj
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

func truncateHits(hits []domain.SearchHit, n int) []domain.SearchHit {
	if len(hits) > n {
		return hits[:n]
	}
	return hits
}

// DeleteDocument removes every chunk of a document from the indexes.
func (s *RetrievalService) DeleteDocument(ctx context.Context, documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if err := s.index.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete %s: %w", documentID, err)
	}
	if s.keyword != nil {
		if err := s.keyword.DeleteByDocument(ctx, documentID); err != nil {
			logger.Warn("keyword index delete for %s failed: %v", documentID, err)
		}
	}
	return nil
}

// Count returns the number of indexed chunks of a document, or of the
// whole collection when documentID is empty.
func (s *RetrievalService) Count(ctx context.Context, documentID string) (int, error) {
	n, err := s.index.Count(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Embedder returns the embedding provider used for ingestion and queries.
func (s *RetrievalService) Embedder() *EmbeddingProvider {
	return s.embedder
}

// Index returns the vector index.
func (s *RetrievalService) Index() driven.VectorIndex {
	return s.index
}

// Mode returns the effective retrieval mode.
func (s *RetrievalService) Mode() domain.RetrievalMode {
	if s.mode == domain.RetrievalModeHybrid && s.keyword == nil {
		return domain.RetrievalModeVector
	}
	return s.mode
}
