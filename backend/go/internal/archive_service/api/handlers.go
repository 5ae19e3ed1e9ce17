package api

import (
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/internal/archive_service/service"
	"AskArchive/backend/go/internal/models"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ArchiveService is the application layer the handlers delegate to.
type ArchiveService interface {
	IngestVideo(ctx context.Context, userID, videoRef string, opts schema.ChunkOptions) (*schema.IngestResult, error)
	IngestPDF(ctx context.Context, userID, filename string, data []byte, opts schema.ChunkOptions) (*schema.IngestResult, error)
	ListSources(ctx context.Context, userID string) ([]*models.IngestionSource, error)
	DeleteSource(ctx context.Context, userID, sourceID string) (*schema.DeleteResult, error)
	DeleteUser(ctx context.Context, userID string) (*schema.DeleteResult, error)
	Search(ctx context.Context, userID, question string, topK int, sourceID string) ([]schema.RetrievedChunk, error)
	Query(ctx context.Context, userID, sessionID, question string, topK int, sourceID string) (*service.QueryResult, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handler 封装了所有 API endpoint 的处理函数。
type Handler struct {
	service        ArchiveService
	maxUploadBytes int64
	checks         map[string]HealthCheck
}

// NewHandler 创建一个新的 Handler 实例。maxUploadBytes <= 0 时不限制上传大小。
func NewHandler(s ArchiveService, maxUploadBytes int64, checks map[string]HealthCheck) *Handler {
	return &Handler{service: s, maxUploadBytes: maxUploadBytes, checks: checks}
}

// IngestVideoRequest 可以用 JSON 请求体或查询参数提交。分块参数缺省时使用服务端配置。
type IngestVideoRequest struct {
	VideoID      string `json:"video_id" form:"video_id" binding:"required"`
	MaxChars     *int   `json:"max_chars" form:"max_chars"`
	OverlapChars *int   `json:"overlap_chars" form:"overlap_chars"`
}

// IngestVideo 处理 POST /ingestion/video。
func (h *Handler) IngestVideo(c *gin.Context) {
	var req IngestVideoRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.service.IngestVideo(c.Request.Context(), currentUser(c), req.VideoID, schema.ChunkOptions{
		MaxChars:     req.MaxChars,
		OverlapChars: req.OverlapChars,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// IngestPDFRequest 是 multipart 表单中的分块参数，文件字段名为 "file"。
type IngestPDFRequest struct {
	MaxChars     *int `form:"max_chars"`
	OverlapChars *int `form:"overlap_chars"`
}

// IngestPDF 处理 POST /ingestion/pdf。
func (h *Handler) IngestPDF(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		// 为 multipart 头部留出余量
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(c, fmt.Sprintf("file exceeds the %d byte upload limit", h.maxUploadBytes))
			return
		}
		badRequest(c, "multipart field 'file' is required")
		return
	}
	var req IngestPDFRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := h.service.IngestPDF(c.Request.Context(), currentUser(c), fh.Filename, data, schema.ChunkOptions{
		MaxChars:     req.MaxChars,
		OverlapChars: req.OverlapChars,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListSources 处理 GET /ingestion。
func (h *Handler) ListSources(c *gin.Context) {
	sources, err := h.service.ListSources(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if sources == nil {
		sources = []*models.IngestionSource{}
	}
	c.JSON(http.StatusOK, sources)
}

// DeleteUser 处理 DELETE /ingestion/user。
func (h *Handler) DeleteUser(c *gin.Context) {
	res, err := h.service.DeleteUser(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DeleteSource 处理 DELETE /ingestion/user/source?source_id=。
func (h *Handler) DeleteSource(c *gin.Context) {
	sourceID := c.Query("source_id")
	if sourceID == "" {
		badRequest(c, "source_id is required")
		return
	}
	res, err := h.service.DeleteSource(c.Request.Context(), currentUser(c), sourceID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// QueryRequest 定义了问答与检索请求。top_k 为 0 时使用配置的默认值。
type QueryRequest struct {
	Question  string `json:"question" form:"question" binding:"required"`
	SessionID string `json:"session_id" form:"session_id"`
	TopK      int    `json:"top_k" form:"top_k" binding:"gte=0"`
	SourceID  string `json:"source_id" form:"source_id"`
}

// Query 处理 POST /query。
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.service.Query(c.Request.Context(), currentUser(c), req.SessionID, req.Question, req.TopK, req.SourceID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SearchResponse 是 POST /search 的响应。
type SearchResponse struct {
	Results []schema.RetrievedChunk `json:"results"`
}

// Search 处理 POST /search，只做检索不生成回答。
func (h *Handler) Search(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	chunks, err := h.service.Search(c.Request.Context(), currentUser(c), req.Question, req.TopK, req.SourceID)
	if err != nil {
		writeError(c, err)
		return
	}
	if chunks == nil {
		chunks = []schema.RetrievedChunk{}
	}
	c.JSON(http.StatusOK, SearchResponse{Results: chunks})
}

// Healthz 依次执行所有依赖检查，任一失败时返回 503。
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "dependencies": deps})
}
