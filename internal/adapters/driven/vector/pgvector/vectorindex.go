// Package pgvector provides a vector index stored in PostgreSQL with the
// pgvector extension, accessed through gorm.
package pgvector

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	pgv "github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/logger"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// tablePrefix namespaces collection tables.
const tablePrefix = "libris_chunks_"

var unsafeTableChars = regexp.MustCompile(`[^a-z0-9_]+`)

// jsonMap stores chunk metadata as jsonb.
type jsonMap map[string]any

func (j jsonMap) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (j *jsonMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", value)
	}
	return json.Unmarshal(data, j)
}

// chunkRecord is one row of a collection table.
type chunkRecord struct {
	ID         string     `gorm:"primaryKey;column:id"`
	DocumentID string     `gorm:"column:document_id;not null;index"`
	ChunkIndex int        `gorm:"column:chunk_index"`
	Content    string     `gorm:"column:content;type:text"`
	StartChar  int        `gorm:"column:start_char"`
	EndChar    int        `gorm:"column:end_char"`
	Embedding  pgv.Vector `gorm:"column:embedding"`
	Metadata   jsonMap    `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
}

// scoredRecord adds the computed cosine distance.
type scoredRecord struct {
	chunkRecord
	Distance float64 `gorm:"column:distance"`
}

// Config holds configuration for the pgvector index.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// Collection names the table (prefixed and sanitised).
	Collection string

	// Dimensions is the vector column size.
	Dimensions int
}

// VectorIndex stores chunks in a per-collection table with a vector(n)
// column and an HNSW cosine index.
type VectorIndex struct {
	db         *gorm.DB
	collection string
	table      string
	dims       int
}

// NewVectorIndex opens a gorm connection. The table is created by Initialize.
func NewVectorIndex(cfg Config) (*VectorIndex, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: pgvector requires a DSN", domain.ErrInvalidInput)
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: pgvector: %w", domain.ErrIndexUnavailable, err)
	}
	return newWithDB(db, cfg), nil
}

func newWithDB(db *gorm.DB, cfg Config) *VectorIndex {
	if cfg.Collection == "" {
		cfg.Collection = domain.DefaultCollection
	}
	return &VectorIndex{
		db:         db,
		collection: cfg.Collection,
		table:      TableName(cfg.Collection),
		dims:       cfg.Dimensions,
	}
}

// TableName maps a collection name onto a safe table identifier.
func TableName(collection string) string {
	name := unsafeTableChars.ReplaceAllString(strings.ToLower(collection), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "default"
	}
	return tablePrefix + name
}

// Initialize enables the extension and creates the table and indexes. An
// existing table with a different vector size fails with
// domain.ErrDimensionMismatch.
func (v *VectorIndex) Initialize(ctx context.Context) error {
	if v.dims <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, v.dims)
	}

	db := v.db.WithContext(ctx)
	statements := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			start_char INTEGER NOT NULL DEFAULT 0,
			end_char INTEGER NOT NULL DEFAULT 0,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, v.table, v.dims),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_document_idx ON %s (document_id)", v.table, v.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)",
			v.table, v.table),
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("%w: pgvector init: %w", domain.ErrIndexUnavailable, err)
		}
	}

	// atttypmod holds the declared dimension of a vector column.
	var dims int
	err := db.Raw(`SELECT atttypmod FROM pg_attribute
		WHERE attrelid = ?::regclass AND attname = 'embedding'`, v.table).Scan(&dims).Error
	if err != nil {
		return fmt.Errorf("%w: pgvector init: %w", domain.ErrIndexUnavailable, err)
	}
	if dims > 0 && dims != v.dims {
		return fmt.Errorf("%w: table %s has %d dimensions, configured %d",
			domain.ErrDimensionMismatch, v.table, dims, v.dims)
	}
	logger.Debug("pgvector: table %s ready (%d dimensions)", v.table, v.dims)
	return nil
}

// Upsert writes chunks with ON CONFLICT replacement. Chunks with the wrong
// vector size are skipped.
func (v *VectorIndex) Upsert(ctx context.Context, chunks []domain.DocumentChunk) (domain.UpsertResult, error) {
	var res domain.UpsertResult
	records := make([]chunkRecord, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Vector) != v.dims {
			res.Skipped = append(res.Skipped, c.ID)
			continue
		}
		records = append(records, toRecord(c))
	}
	if len(records) == 0 {
		return res, nil
	}

	err := v.db.WithContext(ctx).Table(v.table).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(records, 100).Error
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("%w: pgvector upsert: %w", domain.ErrIndexUnavailable, err)
	}
	res.Stored = len(records)
	return res, nil
}

// Search orders by cosine distance (<=>) and converts it to similarity.
func (v *VectorIndex) Search(ctx context.Context, vector []float32, q domain.VectorQuery) ([]domain.SearchHit, error) {
	if len(vector) != v.dims {
		return nil, fmt.Errorf("%w: query has %d components, index has %d",
			domain.ErrDimensionMismatch, len(vector), v.dims)
	}
	if q.Limit <= 0 {
		return []domain.SearchHit{}, nil
	}

	var rows []scoredRecord
	if err := v.searchQuery(ctx, vector, q).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: pgvector search: %w", domain.ErrIndexUnavailable, err)
	}

	hits := make([]domain.SearchHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, domain.SearchHit{
			ChunkID:    r.ID,
			DocumentID: r.DocumentID,
			Index:      r.ChunkIndex,
			Content:    r.Content,
			Score:      1 - r.Distance,
			Metadata:   nonEmpty(r.Metadata),
		})
	}
	return hits, nil
}

func (v *VectorIndex) searchQuery(ctx context.Context, vector []float32, q domain.VectorQuery) *gorm.DB {
	emb := pgv.NewVector(vector)
	query := v.db.WithContext(ctx).Table(v.table).
		Select("id, document_id, chunk_index, content, start_char, end_char, metadata, created_at, embedding <=> ? AS distance", emb)
	if q.DocumentID != "" {
		query = query.Where("document_id = ?", q.DocumentID)
	}
	if q.Threshold != nil {
		query = query.Where("1 - (embedding <=> ?) >= ?", emb, *q.Threshold)
	}
	return query.Order("distance ASC, id ASC").Limit(q.Limit)
}

// DeleteByDocument removes every chunk of a document.
func (v *VectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	err := v.db.WithContext(ctx).Table(v.table).
		Where("document_id = ?", documentID).
		Delete(&chunkRecord{}).Error
	if err != nil {
		return fmt.Errorf("%w: pgvector delete: %w", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Count returns the number of chunks for a document, or the table.
func (v *VectorIndex) Count(ctx context.Context, documentID string) (int, error) {
	var n int64
	query := v.db.WithContext(ctx).Table(v.table)
	if documentID != "" {
		query = query.Where("document_id = ?", documentID)
	}
	if err := query.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("%w: pgvector count: %w", domain.ErrIndexUnavailable, err)
	}
	return int(n), nil
}

// Stats describes the collection.
func (v *VectorIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	n, err := v.Count(ctx, "")
	if err != nil {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{
		Backend:    string(domain.VectorBackendPGVector),
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
	sqlDB, err := v.db.DB()
	if err != nil {
		return fmt.Errorf("%w: pgvector: %w", domain.ErrIndexUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: pgvector: %w", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (v *VectorIndex) Close() error {
	sqlDB, err := v.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(c domain.DocumentChunk) chunkRecord {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return chunkRecord{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		ChunkIndex: c.Index,
		Content:    c.Content,
		StartChar:  c.StartChar,
		EndChar:    c.EndChar,
		Embedding:  pgv.NewVector(c.Vector),
		Metadata:   jsonMap(c.Metadata),
		CreatedAt:  createdAt.UTC(),
	}
}

func nonEmpty(m jsonMap) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return map[string]any(m)
}
