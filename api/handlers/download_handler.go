package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/tiktok-extract-go/internal/app"
	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	queueMgr    *app.QueueManager
	downloadMgr *app.DownloadManager
	logger      *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(queueMgr *app.QueueManager, downloadMgr *app.DownloadManager, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		queueMgr:    queueMgr,
		downloadMgr: downloadMgr,
		logger:      logger,
	}
}

// AddDownloadRequest represents a request to add a download
type AddDownloadRequest struct {
	URL      string `json:"url" binding:"required"`
	Priority int    `json:"priority,omitempty"`
}

// ProgressResponse is the live state of one download.
type ProgressResponse struct {
	ID      string                `json:"id"`
	Status  domain.DownloadStatus `json:"status"`
	Active  bool                  `json:"active"`
	Written int64                 `json:"written"`
	Total   int64                 `json:"total"`
	Percent float64               `json:"percent"`
}

// errorStatus maps manager errors to a response code; fallback covers
// anything that is not a lookup miss.
func errorStatus(err error, fallback int) int {
	if errors.Is(err, app.ErrNotFound) {
		return http.StatusNotFound
	}
	return fallback
}

// AddDownload handles POST /api/v1/downloads
func (h *DownloadHandler) AddDownload(c *gin.Context) {
	var req AddDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	download, err := h.queueMgr.AddDownload(req.URL, req.Priority)
	if err != nil {
		if errors.Is(err, app.ErrUnsupportedURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to add download", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, download)
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	id := c.Param("id")

	download, err := h.queueMgr.GetDownload(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}

	c.JSON(http.StatusOK, download)
}

// GetProgress handles GET /api/v1/downloads/:id/progress
func (h *DownloadHandler) GetProgress(c *gin.Context) {
	id := c.Param("id")

	download, err := h.queueMgr.GetDownload(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}

	resp := ProgressResponse{ID: id, Status: download.Status}
	state, active := h.downloadMgr.GetProgress(id)
	switch {
	case active:
		resp.Active = true
	case download.Status == domain.StatusCompleted:
		state = domain.ProgressState{Written: download.BytesWritten, Total: download.BytesWritten}
	default:
		state = domain.NewProgressState(-1)
		state.Written = download.BytesWritten
	}
	resp.Written, resp.Total, resp.Percent = state.Written, state.Total, state.Percent()

	c.JSON(http.StatusOK, resp)
}

// ListDownloads handles GET /api/v1/downloads
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	// Parse query parameters for filtering
	filters := make(map[string]interface{})

	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if platform := c.Query("platform"); platform != "" {
		filters["platform"] = platform
	}

	downloads, err := h.queueMgr.ListDownloads(filters)
	if err != nil {
		h.logger.Error("Failed to list downloads", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, downloads)
}

// GetStats handles GET /api/v1/downloads/stats
func (h *DownloadHandler) GetStats(c *gin.Context) {
	stats, err := h.queueMgr.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CancelDownload handles POST /api/v1/downloads/:id/cancel
func (h *DownloadHandler) CancelDownload(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.CancelDownload(id); err != nil {
		h.logger.Warn("Failed to cancel download", zap.String("id", id), zap.Error(err))
		c.JSON(errorStatus(err, http.StatusConflict), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download cancelled"})
}

// RetryDownload handles POST /api/v1/downloads/:id/retry
func (h *DownloadHandler) RetryDownload(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.RetryDownload(id); err != nil {
		h.logger.Warn("Failed to retry download", zap.String("id", id), zap.Error(err))
		c.JSON(errorStatus(err, http.StatusConflict), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download queued for retry"})
}

// DeleteDownload handles DELETE /api/v1/downloads/:id
func (h *DownloadHandler) DeleteDownload(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.DeleteDownload(id); err != nil {
		h.logger.Error("Failed to delete download", zap.String("id", id), zap.Error(err))
		c.JSON(errorStatus(err, http.StatusInternalServerError), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download deleted"})
}
