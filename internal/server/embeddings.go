package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/threadwise/agentd/internal/extract"
	"github.com/threadwise/agentd/internal/ingest"
	"github.com/threadwise/agentd/internal/runtime"
	"github.com/threadwise/agentd/internal/store"
)

// maxUploadSize caps direct multipart uploads.
const maxUploadSize = 64 << 20

// EmbeddingsHandler exposes the document ingestion and search endpoints.
type EmbeddingsHandler struct {
	Ingest  *ingest.Service
	Store   *store.Store
	TopK    int
	Counter *RequestCounter
}

func (h *EmbeddingsHandler) Register(g *echo.Group, secret []byte) {
	g.GET("/health", h.health)
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.POST("/embed", h.embedFile)
	g.POST("/upload", h.upload)
	g.POST("/search", h.search)
	g.POST("/keyword-search", h.keywordSearch)
	g.GET("/documents", h.listDocuments)
	g.DELETE("/:filename", h.deleteDocument)
}

func (h *EmbeddingsHandler) embedFile(c echo.Context) error {
	var req EmbedFileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.FileURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "file_url is required")
	}
	h.Counter.Inc(c.Request().Context(), "embed_file")

	res, err := h.Ingest.IngestFile(c.Request().Context(), req.FileURL, req.FileType)
	if err != nil {
		return ingestError(err)
	}
	return c.JSON(http.StatusOK, EmbedFileResponse(res))
}

func (h *EmbeddingsHandler) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fh.Size > maxUploadSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.Counter.Inc(c.Request().Context(), "embed_upload")

	// Browsers and CLI clients often send a generic part type; fall back to
	// the filename extension before rejecting.
	mediaType := fh.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = mime.TypeByExtension(filepath.Ext(fh.Filename))
	}
	res, err := h.Ingest.IngestBytes(c.Request().Context(), data, mediaType, fh.Filename, "")
	if err != nil {
		return ingestError(err)
	}
	return c.JSON(http.StatusOK, EmbedFileResponse(res))
}

func (h *EmbeddingsHandler) search(c echo.Context) error {
	req, err := h.bindSearch(c)
	if err != nil {
		return err
	}
	h.Counter.Inc(c.Request().Context(), "search")

	hits, err := h.Ingest.Search(c.Request().Context(), req.Query, req.TopK)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, searchResponse(hits))
}

func (h *EmbeddingsHandler) keywordSearch(c echo.Context) error {
	req, err := h.bindSearch(c)
	if err != nil {
		return err
	}
	h.Counter.Inc(c.Request().Context(), "keyword_search")

	hits, err := h.Ingest.KeywordSearch(c.Request().Context(), req.Query, req.TopK)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, searchResponse(hits))
}

func (h *EmbeddingsHandler) listDocuments(c echo.Context) error {
	docs, err := h.Store.ListDocuments(c.Request().Context(), 100)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *EmbeddingsHandler) deleteDocument(c echo.Context) error {
	filename := c.Param("filename")
	found, err := h.Ingest.Delete(c.Request().Context(), filename)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	return c.JSON(http.StatusOK, DeleteDocumentResponse{Deleted: true, Filename: filename})
}

func (h *EmbeddingsHandler) health(c echo.Context) error {
	status := h.Ingest.Health(c.Request().Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

func (h *EmbeddingsHandler) bindSearch(c echo.Context) (SearchRequest, error) {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return req, echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	if req.TopK <= 0 {
		req.TopK = h.TopK
	}
	return req, nil
}

func searchResponse(hits []ingest.SearchResult) SearchResponse {
	out := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, SearchHit{Content: h.Content, Metadata: h.Metadata, Score: h.Score})
	}
	return SearchResponse{Results: out}
}

// ingestError maps pipeline failures onto HTTP status codes. Unsupported
// media types are a client error, everything else is a server fault.
func ingestError(err error) error {
	var unsupported *extract.UnsupportedTypeError
	if errors.As(err, &unsupported) {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	}
	var extraction *extract.ExtractionError
	if errors.As(err, &extraction) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
