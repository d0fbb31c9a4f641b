package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/core/ports/driving"
	"github.com/custodia-labs/libris/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// documentIngester is the part of the RAG pipeline DocumentService needs.
type documentIngester interface {
	Ingest(ctx context.Context, doc domain.Document) (domain.IngestResult, error)
}

// DocumentService turns files into ingested documents.
type DocumentService struct {
	normalisers driven.NormaliserRegistry
	ingester    documentIngester
}

// NewDocumentService creates a document service.
func NewDocumentService(normalisers driven.NormaliserRegistry, ingester documentIngester) *DocumentService {
	return &DocumentService{
		normalisers: normalisers,
		ingester:    ingester,
	}
}

// IngestRaw normalises raw and ingests the text under documentID.
func (s *DocumentService) IngestRaw(
	ctx context.Context,
	documentID string,
	raw *domain.RawDocument,
) (domain.IngestResult, error) {
	result := domain.IngestResult{DocumentID: documentID, Outcome: domain.OutcomeFailed}
	if strings.TrimSpace(documentID) == "" {
		return result, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	normalised, err := s.normalisers.Normalise(ctx, raw)
	if err != nil {
		return result, fmt.Errorf("normalise %s: %w", documentID, err)
	}

	doc := normalised.Document
	doc.ID = documentID
	logger.Debug("normalised %s (%s): %d bytes -> %d chars", documentID, doc.MIMEType,
		len(raw.Content), len(doc.Content))

	return s.ingester.Ingest(ctx, doc)
}

// SupportedMIMETypes lists the formats that can be ingested.
func (s *DocumentService) SupportedMIMETypes() []string {
	return s.normalisers.SupportedMIMETypes()
}
