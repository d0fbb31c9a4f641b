package domain

import "time"

// Document is the ingestion input: normalised text plus metadata.
type Document struct {
	// ID is the owning document identifier. All chunks carry it.
	ID string

	// Title is the human-readable title.
	Title string

	// Content is the full text content before chunking.
	Content string

	// MIMEType is the type the content was extracted from.
	MIMEType string

	// Metadata contains arbitrary key-value pairs (author, upload time...).
	// It is copied onto every chunk and is opaque to the chunker.
	Metadata map[string]any
}

// DocumentChunk is a unit of indexed text.
// It is immutable once stored; a document's chunks are replaced as a set.
type DocumentChunk struct {
	// ID is the globally unique chunk identifier.
	ID string

	// DocumentID links to the owning document.
	DocumentID string

	// Index is the 0-based ordinal within the document.
	Index int

	// Content is the chunk text, non-empty after cleaning.
	Content string

	// StartChar is the rune offset into the cleaned source text.
	StartChar int

	// EndChar is the exclusive end offset. EndChar-StartChar is the rune
	// length of Content.
	EndChar int

	// Vector is the dense embedding of the configured dimension.
	Vector []float32

	// Metadata contains chunk-specific and inherited document key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the chunk was produced.
	CreatedAt time.Time
}

// ContextChunk is a retrieval-time result. It is never persisted.
type ContextChunk struct {
	ChunkID    string         `json:"chunk_id"`
	DocumentID string         `json:"document_id"`
	Content    string         `json:"content"`
	Score      float64        `json:"score"`
	Index      int            `json:"chunk_index"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SearchHit is one ranked row returned by a vector index search.
type SearchHit struct {
	ChunkID    string
	DocumentID string
	Index      int
	Content    string
	Score      float64
	Metadata   map[string]any
}

// ToContext converts a hit into its retrieval-time shape.
func (h SearchHit) ToContext() ContextChunk {
	return ContextChunk{
		ChunkID:    h.ChunkID,
		DocumentID: h.DocumentID,
		Content:    h.Content,
		Score:      h.Score,
		Index:      h.Index,
		Metadata:   h.Metadata,
	}
}

// VectorQuery configures a similarity search.
type VectorQuery struct {
	// Limit is the maximum number of hits.
	Limit int

	// DocumentID restricts hits to one document when non-empty.
	DocumentID string

	// Threshold excludes hits scoring below it when non-nil.
	// A nil threshold applies no filtering at all.
	Threshold *float64
}

// UpsertResult reports what an index upsert stored.
type UpsertResult struct {
	// Stored is the number of chunks written.
	Stored int

	// Skipped lists chunk IDs rejected for a wrong vector dimension.
	Skipped []string
}

// IndexStats describes a vector collection for status reporting.
type IndexStats struct {
	Backend    string `json:"backend" yaml:"backend"`
	Collection string `json:"collection" yaml:"collection"`
	Dimensions int    `json:"dimensions" yaml:"dimensions"`
	Metric     string `json:"metric" yaml:"metric"`
	Count      int    `json:"count" yaml:"count"`
}

// IngestResult reports the outcome of ingesting one document.
type IngestResult struct {
	DocumentID string        `json:"document_id"`
	Chunks     int           `json:"chunks"`
	Indexed    int           `json:"indexed"`
	Skipped    int           `json:"skipped"`
	Outcome    Outcome       `json:"outcome"`
	Duration   time.Duration `json:"-"`
}
