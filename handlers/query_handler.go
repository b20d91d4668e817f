package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"casefinder-backend/embedding"
	"casefinder-backend/extract"
	"casefinder-backend/index"
	"casefinder-backend/metrics"
	"casefinder-backend/models"
	"casefinder-backend/service"
	"casefinder-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// multipart framing allowance on top of the file size limit
const multipartOverhead = 1 << 20

// QueryProcessor is the query side of service.QueryService
type QueryProcessor interface {
	Process(ctx context.Context, text string) (*models.QueryResponse, error)
	ProcessRequest(ctx context.Context, req service.QueryRequest) (*models.QueryResponse, error)
	GetAnalysis(ctx context.Context, id uuid.UUID) (*models.Analysis, error)
	ListAnalyses(ctx context.Context, limit int) ([]models.Analysis, error)
}

// IndexInfo describes the loaded index for /health
type IndexInfo interface {
	Len() int
	Dimension() int
	ModelID() string
}

// QueryHandler handles HTTP requests for queries, uploads and recorded analyses
type QueryHandler struct {
	queries     QueryProcessor
	info        IndexInfo
	archive     storage.Storage // nil disables upload archiving
	maxFileSize int64
	log         logr.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(queries QueryProcessor, info IndexInfo, archive storage.Storage, maxFileSize int64, logger logr.Logger) *QueryHandler {
	if maxFileSize <= 0 {
		maxFileSize = 20 * 1024 * 1024 // 20MB
	}
	return &QueryHandler{
		queries:     queries,
		info:        info,
		archive:     archive,
		maxFileSize: maxFileSize,
		log:         logger.WithName("http"),
	}
}

// QueryRequest represents the request body for a text query
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// Root handles GET /
func (h *QueryHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Case finder backend running. Use /api/query (POST) or /api/upload (POST file).",
	})
}

// Health handles GET /health
func (h *QueryHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"cases":     h.info.Len(),
		"dimension": h.info.Dimension(),
		"embedder":  h.info.ModelID(),
	})
}

// Query handles POST /api/query
func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.Requests.WithLabelValues("query", "invalid").Inc()
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be JSON with a non-empty \"query\" field")
		return
	}

	resp, err := h.queries.Process(c.Request.Context(), req.Query)
	if err != nil {
		h.respondProcessError(c, "query", err)
		return
	}

	metrics.Requests.WithLabelValues("query", "ok").Inc()
	c.JSON(http.StatusOK, resp)
}

// Upload handles POST /api/upload
func (h *QueryHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondTooLarge(c)
			return
		}
		metrics.Requests.WithLabelValues("upload", "invalid").Inc()
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "File is required")
		return
	}

	if !extract.Supported(fileHeader.Filename) {
		metrics.Requests.WithLabelValues("upload", "invalid").Inc()
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "Only .pdf, .docx or .txt files are allowed.")
		return
	}

	if fileHeader.Size > h.maxFileSize {
		h.respondTooLarge(c)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		metrics.Requests.WithLabelValues("upload", "error").Inc()
		respondError(c, http.StatusInternalServerError, "FILE_OPEN_ERROR", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		metrics.Requests.WithLabelValues("upload", "error").Inc()
		respondError(c, http.StatusInternalServerError, "FILE_READ_ERROR", err.Error())
		return
	}
	if int64(len(data)) > h.maxFileSize {
		h.respondTooLarge(c)
		return
	}

	text, err := extract.Text(data, fileHeader.Filename)
	if err != nil {
		metrics.Requests.WithLabelValues("upload", "invalid").Inc()
		respondError(c, http.StatusBadRequest, "EXTRACTION_FAILED", fmt.Sprintf("Failed to extract file text: %v", err))
		return
	}

	archiveKey := h.archiveUpload(c.Request.Context(), fileHeader.Filename, data)

	filename := fileHeader.Filename
	resp, err := h.queries.ProcessRequest(c.Request.Context(), service.QueryRequest{
		Text:     text,
		Source:   models.SourceUpload,
		Filename: &filename,
	})
	if err != nil {
		h.discardUpload(c.Request.Context(), archiveKey)
		h.respondProcessError(c, "upload", err)
		return
	}

	metrics.Requests.WithLabelValues("upload", "ok").Inc()
	c.JSON(http.StatusOK, resp)
}

// ListAnalyses handles GET /api/analyses
func (h *QueryHandler) ListAnalyses(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			respondError(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	list, err := h.queries.ListAnalyses(c.Request.Context(), limit)
	switch {
	case errors.Is(err, service.ErrHistoryDisabled):
		respondError(c, http.StatusServiceUnavailable, "HISTORY_DISABLED", "Analysis history is not enabled")
		return
	case err != nil:
		h.log.Error(err, "failed to list analyses")
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list analyses")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    list,
	})
}

// GetAnalysis handles GET /api/analyses/:id
func (h *QueryHandler) GetAnalysis(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ANALYSIS_ID", "Invalid analysis ID format")
		return
	}

	analysis, err := h.queries.GetAnalysis(c.Request.Context(), id)
	switch {
	case errors.Is(err, service.ErrHistoryDisabled):
		respondError(c, http.StatusServiceUnavailable, "HISTORY_DISABLED", "Analysis history is not enabled")
		return
	case errors.Is(err, service.ErrAnalysisNotFound):
		respondError(c, http.StatusNotFound, "ANALYSIS_NOT_FOUND", "Analysis not found")
		return
	case err != nil:
		h.log.Error(err, "failed to load analysis", "id", id.String())
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load analysis")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    analysis,
	})
}

// archiveUpload stores the raw upload and returns its key, or "" when nothing was stored
func (h *QueryHandler) archiveUpload(ctx context.Context, filename string, data []byte) string {
	if h.archive == nil {
		return ""
	}
	key, err := h.archive.Archive(ctx, uuid.New(), filename, bytes.NewReader(data))
	if err != nil {
		h.log.Error(err, "failed to archive upload", "filename", filename)
		return ""
	}
	h.log.V(1).Info("upload archived", "key", key, "bytes", len(data))
	return key
}

// discardUpload removes an archived upload whose analysis failed
func (h *QueryHandler) discardUpload(ctx context.Context, key string) {
	if h.archive == nil || key == "" {
		return
	}
	if err := h.archive.Remove(context.WithoutCancel(ctx), key); err != nil {
		h.log.Error(err, "failed to remove archived upload", "key", key)
	}
}

func (h *QueryHandler) respondTooLarge(c *gin.Context) {
	metrics.Requests.WithLabelValues("upload", "too_large").Inc()
	respondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
		fmt.Sprintf("File too large. Max %d MB allowed.", h.maxFileSize/(1024*1024)))
}

// respondProcessError maps retrieval and reasoning failures to the error envelope
func (h *QueryHandler) respondProcessError(c *gin.Context, endpoint string, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		metrics.Requests.WithLabelValues(endpoint, "invalid").Inc()
		respondError(c, http.StatusBadRequest, "EMPTY_QUERY", "Query text is empty")
	case errors.Is(err, service.ErrReasoningUnavailable):
		metrics.Requests.WithLabelValues(endpoint, "reasoning_unavailable").Inc()
		h.log.Error(err, "reasoning call failed", "endpoint", endpoint)
		respondError(c, http.StatusBadGateway, "REASONING_UNAVAILABLE", fmt.Sprintf("Processing error: %v", err))
	case errors.Is(err, index.ErrDimensionMismatch):
		// a query vector that does not fit the index means the model and index disagree
		metrics.Requests.WithLabelValues(endpoint, "error").Inc()
		h.log.Error(err, "DIMENSION_MISMATCH: embedder output does not match the index", "endpoint", endpoint)
		respondError(c, http.StatusInternalServerError, "PROCESSING_FAILED", fmt.Sprintf("Processing error: %v", err))
	case errors.Is(err, embedding.ErrEmbedding):
		metrics.Requests.WithLabelValues(endpoint, "error").Inc()
		h.log.Error(err, "embedding failed", "endpoint", endpoint)
		respondError(c, http.StatusInternalServerError, "PROCESSING_FAILED", fmt.Sprintf("Processing error: %v", err))
	default:
		metrics.Requests.WithLabelValues(endpoint, "error").Inc()
		h.log.Error(err, "query processing failed", "endpoint", endpoint)
		respondError(c, http.StatusInternalServerError, "PROCESSING_FAILED", fmt.Sprintf("Processing error: %v", err))
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
