// Package chunker splits document text into overlapping, boundary-aware chunks.
package chunker

import (
	"context"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/logger"
)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

var _ driven.PostProcessor = (*Processor)(nil)

// Processor splits document content into chunks with Split.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in runes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.chunkSize, p.overlap = normalise(p.chunkSize, p.overlap)
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the effective chunk size.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the effective overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
// Offsets are contiguous: each chunk starts where the previous one ended.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.DocumentChunk) ([]domain.DocumentChunk, error) {
	texts := Split(doc.Content, p.chunkSize, p.overlap)
	if len(texts) == 0 {
		return nil, nil
	}

	chunks := make([]domain.DocumentChunk, 0, len(texts))
	offset := 0
	for i, text := range texts {
		n := runeLen(text)
		chunks = append(chunks, domain.DocumentChunk{
			DocumentID: doc.ID,
			Index:      i,
			Content:    text,
			StartChar:  offset,
			EndChar:    offset + n,
			Metadata:   make(map[string]any),
		})
		offset += n
	}

	logger.Debug("chunker: document %s split into %d chunks (size=%d overlap=%d)",
		doc.ID, len(chunks), p.chunkSize, p.overlap)
	return chunks, nil
}
