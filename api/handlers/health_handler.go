package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/tiktok-extract-go/internal/app"
)

// Version is reported by /health.
const Version = "1.0.0"

// HealthHandler reports liveness and queue readiness.
type HealthHandler struct {
	queueMgr *app.QueueManager
}

func NewHealthHandler(queueMgr *app.QueueManager) *HealthHandler {
	return &HealthHandler{queueMgr: queueMgr}
}

// QueueHealth summarises the worker and its backlog.
type QueueHealth struct {
	Running    bool  `json:"running"`
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Queue   QueueHealth `json:"queue"`
}

// Health handles GET /health. It answers 200 while the process is up, even
// if the database cannot be read; status is then "degraded".
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:  "ok",
		Version: Version,
		Queue:   QueueHealth{Running: h.queueMgr.IsRunning()},
	}

	stats, err := h.queueMgr.GetStats()
	if err != nil {
		resp.Status = "degraded"
	} else {
		resp.Queue.Queued = stats.Queued
		resp.Queue.Processing = stats.Processing
	}

	c.JSON(http.StatusOK, resp)
}

// Ready handles GET /ready: 200 only when the worker runs and the database
// answers.
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.queueMgr.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "queue manager not running",
		})
		return
	}
	if _, err := h.queueMgr.GetStats(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
