// Package ingest turns uploaded documents into embedded, searchable chunks.
// It owns the extraction → chunking → embedding → storage pipeline and the
// similarity/keyword search paths over the result.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"path"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/threadwise/agentd/config"
	"github.com/threadwise/agentd/internal/chunk"
	"github.com/threadwise/agentd/internal/extract"
	"github.com/threadwise/agentd/internal/store"
	"github.com/threadwise/agentd/provider"
)

// maxDownloadSize caps how much of a remote file is read into memory.
const maxDownloadSize = 64 << 20

// Service coordinates document ingestion and search. All collaborators are
// injected once at startup; the service itself keeps no mutable state beyond
// the keyword index.
type Service struct {
	store      *store.Store
	provider   provider.Provider
	keyword    *KeywordIndex
	cfg        config.EmbeddingConfig
	modelName  string
	httpClient *http.Client
	logger     *log.Logger
}

// IngestResult summarises one ingested document.
type IngestResult struct {
	DocumentID string `json:"documentId"`
	Chunks     int    `json:"chunks"`
	Filename   string `json:"filename"`
	TextLength int    `json:"text_length"`
}

// SearchResult is one similarity or keyword hit.
type SearchResult struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Score    float64                `json:"score,omitempty"`
}

// HealthStatus reports whether the embedding pipeline is usable.
type HealthStatus struct {
	Status     string `json:"status"`
	Model      string `json:"embedding_model,omitempty"`
	Dimensions int    `json:"embedding_dimensions,omitempty"`
	Store      string `json:"vector_store,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewService builds an ingestion service.
func NewService(st *store.Store, p provider.Provider, cfg config.EmbeddingConfig, modelName string, logger *log.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("ingest requires a store")
	}
	if p == nil {
		return nil, fmt.Errorf("ingest requires an embedding-capable provider")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunk.DefaultSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = chunk.DefaultOverlap
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.SearchTopK <= 0 {
		cfg.SearchTopK = 5
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = store.DefaultEmbeddingDimensions
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	kw, err := NewKeywordIndex()
	if err != nil {
		return nil, err
	}
	return &Service{
		store:      st,
		provider:   p,
		keyword:    kw,
		cfg:        cfg,
		modelName:  modelName,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}, nil
}

// IngestFile downloads a file and runs it through the embedding pipeline.
// When mediaType is empty the response Content-Type is used, then the
// filename extension.
func (s *Service) IngestFile(ctx context.Context, fileURL, mediaType string) (IngestResult, error) {
	data, filename, contentType, err := s.download(ctx, fileURL)
	if err != nil {
		return IngestResult{Filename: filename}, err
	}
	if mediaType == "" {
		mediaType = contentType
	}
	if mediaType == "" {
		mediaType = mime.TypeByExtension(path.Ext(filename))
	}
	res, err := s.IngestBytes(ctx, data, mediaType, filename, fileURL)
	return res, err
}

// IngestBytes extracts, chunks, embeds and stores a document supplied as raw
// bytes.
func (s *Service) IngestBytes(ctx context.Context, data []byte, mediaType, filename, sourceURL string) (IngestResult, error) {
	s.logger.Printf("ingesting %s (type: %s, %d bytes)", filename, mediaType, len(data))

	text, err := extract.Extract(data, mediaType, filename)
	if err != nil {
		return IngestResult{Filename: filename}, err
	}

	textLen := utf8.RuneCountInString(text)
	chunks := chunk.Split(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return IngestResult{Filename: filename}, fmt.Errorf("no extractable text in %s", filename)
	}
	s.logger.Printf("%s chunked into %d pieces", filename, len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedBatches(ctx, texts)
	if err != nil {
		return IngestResult{Filename: filename}, err
	}
	if len(vectors) != len(chunks) {
		return IngestResult{Filename: filename}, fmt.Errorf("embedding count mismatch: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	docID := uuid.NewString()
	doc := store.DocumentRecord{
		ID:         docID,
		Filename:   filename,
		MediaType:  mediaType,
		SourceURL:  sourceURL,
		TextLength: textLen,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return IngestResult{Filename: filename}, fmt.Errorf("store document: %w", err)
	}

	records := make([]store.ChunkRecord, len(chunks))
	for i, c := range chunks {
		if s.cfg.Dimensions > 0 && len(vectors[i]) != s.cfg.Dimensions {
			s.logger.Printf("warn: embedding dimensions mismatch (got %d want %d)", len(vectors[i]), s.cfg.Dimensions)
		}
		records[i] = store.ChunkRecord{
			DocumentID: docID,
			Index:      i,
			Content:    c.Text,
			Metadata: map[string]interface{}{
				"fileName":   filename,
				"fileType":   mediaType,
				"chunkIndex": i,
				"source":     sourceURL,
				"offset":     c.Start,
			},
			Vector: vectors[i],
		}
	}
	if err := s.store.InsertChunks(ctx, docID, records); err != nil {
		return IngestResult{Filename: filename}, fmt.Errorf("store chunks: %w", err)
	}

	for i, c := range chunks {
		id := fmt.Sprintf("%s:%d", docID, i)
		if err := s.keyword.Add(id, IndexedChunk{DocumentID: docID, Filename: filename, ChunkIndex: i, Content: c.Text}); err != nil {
			s.logger.Printf("warn: keyword index %s: %v", id, err)
		}
	}

	s.logger.Printf("embedded %d chunks for %s", len(chunks), filename)
	return IngestResult{
		DocumentID: docID,
		Chunks:     len(chunks),
		Filename:   filename,
		TextLength: textLen,
	}, nil
}

// Search embeds the query and runs a nearest-neighbor lookup.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = s.cfg.SearchTopK
	}
	vectors, err := s.provider.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: provider returned no vectors")
	}
	hits, err := s.store.SearchChunks(ctx, vectors[0], limit, s.cfg.SearchThreshold)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		meta := h.Metadata
		if meta == nil {
			meta = map[string]interface{}{}
		}
		meta["fileName"] = h.Filename
		results = append(results, SearchResult{Content: h.Content, Metadata: meta, Score: h.Distance})
	}
	return results, nil
}

// KeywordSearch runs a query-string search over the in-memory chunk index.
func (s *Service) KeywordSearch(_ context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = s.cfg.SearchTopK
	}
	hits, err := s.keyword.Search(query, limit)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			Content: h.Content,
			Metadata: map[string]interface{}{
				"fileName":   h.Filename,
				"chunkIndex": h.ChunkIndex,
			},
			Score: h.Score,
		})
	}
	return results, nil
}

// Delete removes every document stored under filename. It reports whether
// anything was deleted.
func (s *Service) Delete(ctx context.Context, filename string) (bool, error) {
	ids, err := s.store.DeleteDocumentsByFilename(ctx, filename)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		s.keyword.RemoveDocument(id)
	}
	if len(ids) == 0 {
		s.logger.Printf("no embeddings found for %s", filename)
		return false, nil
	}
	s.logger.Printf("deleted %d document(s) for %s", len(ids), filename)
	return true, nil
}

// Health probes the embedding provider and the vector store.
func (s *Service) Health(ctx context.Context) HealthStatus {
	vectors, err := s.provider.CreateEmbedding(ctx, []string{"This is a test."})
	if err != nil || len(vectors) == 0 {
		return HealthStatus{Status: "unhealthy", Error: fmt.Sprintf("embedding probe failed: %v", err)}
	}
	if err := s.store.DB.PingContext(ctx); err != nil {
		return HealthStatus{Status: "unhealthy", Error: fmt.Sprintf("vector store unreachable: %v", err)}
	}
	return HealthStatus{
		Status:     "healthy",
		Model:      s.modelName,
		Dimensions: len(vectors[0]),
		Store:      "connected",
	}
}

func (s *Service) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.provider.CreateEmbedding(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (s *Service) download(ctx context.Context, fileURL string) ([]byte, string, string, error) {
	filename := filenameFromURL(fileURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, filename, "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, filename, "", fmt.Errorf("download %s: %w", fileURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, filename, "", fmt.Errorf("download %s: status %d", fileURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return nil, filename, "", fmt.Errorf("read download body: %w", err)
	}
	return data, filename, resp.Header.Get("Content-Type"), nil
}

func filenameFromURL(fileURL string) string {
	u, err := url.Parse(fileURL)
	if err != nil || u.Path == "" {
		return fileURL
	}
	return path.Base(u.Path)
}
