package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

type Store struct {
	DB *sql.DB
}

// DefaultEmbeddingDimensions indicates the expected length of vectors stored in pgvector columns.
const DefaultEmbeddingDimensions = 1536

// DocumentRecord represents an ingested document.
type DocumentRecord struct {
	ID         string
	Filename   string
	MediaType  string
	SourceURL  string
	ChunkCount int
	TextLength int
	CreatedAt  time.Time
}

// ChunkRecord represents a single chunk of a document together with its embedding.
type ChunkRecord struct {
	DocumentID string
	Index      int
	Content    string
	Metadata   map[string]interface{}
	Vector     []float32
}

// ChunkSearchResult represents a similarity search hit.
type ChunkSearchResult struct {
	DocumentID string
	Filename   string
	ChunkIndex int
	Content    string
	Metadata   map[string]interface{}
	Distance   float64
	CreatedAt  time.Time
}

var (
	metricsOnce    sync.Once
	chunkCounter   otelmetric.Int64Counter
	searchCounter  otelmetric.Int64Counter
	metricsInitErr error
)

func initStoreMetrics() {
	meter := otel.Meter("store")
	var err error
	chunkCounter, err = meter.Int64Counter("document_chunks_stored_total")
	if err != nil {
		metricsInitErr = err
		return
	}
	searchCounter, err = meter.Int64Counter("chunk_searches_total")
	if err != nil {
		metricsInitErr = err
	}
}

func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	metricsOnce.Do(initStoreMetrics)
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Document operations

// CreateDocument inserts the document row. Chunk counts are filled in by
// InsertChunks once embedding succeeded.
func (s *Store) CreateDocument(ctx context.Context, rec DocumentRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("document id required")
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO documents (id, filename, media_type, source_url, chunk_count, text_length)
VALUES ($1,$2,$3,$4,$5,$6)
`, rec.ID, rec.Filename, rec.MediaType, rec.SourceURL, rec.ChunkCount, rec.TextLength)
	return err
}

// InsertChunks stores all chunks of a document in one transaction and
// updates the document's chunk count.
func (s *Store) InsertChunks(ctx context.Context, documentID string, records []ChunkRecord) error {
	if documentID == "" {
		return fmt.Errorf("document id required")
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO document_chunks (document_id, chunk_index, content, metadata, embedding)
VALUES ($1,$2,$3,$4,$5::vector)
ON CONFLICT (document_id, chunk_index) DO UPDATE SET
  content = EXCLUDED.content,
  metadata = EXCLUDED.metadata,
  embedding = EXCLUDED.embedding
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if len(rec.Vector) == 0 {
			return fmt.Errorf("embedding vector required for chunk %d", rec.Index)
		}
		vectorLiteral, err := encodeVectorLiteral(rec.Vector)
		if err != nil {
			return err
		}
		meta := rec.Metadata
		if meta == nil {
			meta = map[string]interface{}{}
		}
		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, documentID, rec.Index, rec.Content, metaBytes, vectorLiteral); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET chunk_count=$2 WHERE id=$1`, documentID, len(records)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if chunkCounter != nil {
		chunkCounter.Add(ctx, int64(len(records)))
	}
	return nil
}

// SearchChunks returns the closest chunks for the supplied vector.
func (s *Store) SearchChunks(ctx context.Context, vector []float32, topK int, threshold float64) ([]ChunkSearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector must not be empty")
	}
	if topK <= 0 {
		topK = 5
	}
	vecLiteral, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT c.document_id, d.filename, c.chunk_index, c.content, c.metadata, c.created_at, c.embedding <=> $1::vector AS distance
FROM document_chunks c
JOIN documents d ON d.id = c.document_id
ORDER BY c.embedding <=> $1::vector
LIMIT $2
`, vecLiteral, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []ChunkSearchResult
	for rows.Next() {
		var (
			res       ChunkSearchResult
			metaBytes []byte
		)
		if err := rows.Scan(&res.DocumentID, &res.Filename, &res.ChunkIndex, &res.Content, &metaBytes, &res.CreatedAt, &res.Distance); err != nil {
			return nil, err
		}
		if threshold > 0 && res.Distance > threshold {
			continue
		}
		if len(metaBytes) > 0 {
			_ = json.Unmarshal(metaBytes, &res.Metadata)
		}
		results = append(results, res)
	}
	if searchCounter != nil {
		searchCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.Int("top_k", topK)))
	}
	return results, rows.Err()
}

// DeleteDocumentsByFilename removes all documents with the given filename and
// their chunks (cascade). It returns the ids of the removed documents so
// secondary indexes can drop them too.
func (s *Store) DeleteDocumentsByFilename(ctx context.Context, filename string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `DELETE FROM documents WHERE filename=$1 RETURNING id`, filename)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListDocuments returns documents in reverse ingestion order.
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]DocumentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, filename, media_type, COALESCE(source_url,''), chunk_count, text_length, created_at
FROM documents ORDER BY created_at DESC LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []DocumentRecord
	for rows.Next() {
		var d DocumentRecord
		if err := rows.Scan(&d.ID, &d.Filename, &d.MediaType, &d.SourceURL, &d.ChunkCount, &d.TextLength, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// CountDocuments reports stored document and chunk totals.
func (s *Store) CountDocuments(ctx context.Context) (docs int64, chunks int64, err error) {
	if err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&docs); err != nil {
		return
	}
	err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks`).Scan(&chunks)
	return
}

// PruneOrphanChunks removes chunks whose parent document no longer exists.
// Cascading deletes normally keep this at zero; the janitor runs it anyway.
func (s *Store) PruneOrphanChunks(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
DELETE FROM document_chunks WHERE document_id NOT IN (SELECT id FROM documents)
`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}
