package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/tiktok-extract-go/pkg/logger"
)

const (
	wsBacklog      = 50
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	// The API only listens on the configured host; the CLI is the usual client.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LogWebSocketHandler streams a category log over a WebSocket
type LogWebSocketHandler struct {
	logReader *logger.LogReader
	logger    *zap.Logger
}

// NewLogWebSocketHandler creates a new WebSocket handler
func NewLogWebSocketHandler(logsDir string, log *zap.Logger) *LogWebSocketHandler {
	return &LogWebSocketHandler{
		logReader: logger.NewLogReader(logsDir),
		logger:    log,
	}
}

// HandleWebSocket handles GET /api/v1/logs/stream?category=download. It sends
// the last entries of today's file and then every appended entry.
func (h *LogWebSocketHandler) HandleWebSocket(c *gin.Context) {
	category, err := logger.ParseCategory(c.DefaultQuery("category", string(logger.CategoryDownload)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("WebSocket client connected",
		zap.String("category", string(category)),
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Send initial logs
	entries, err := h.logReader.ReadTodayLogs(category, wsBacklog)
	if err == nil {
		for _, entry := range entries {
			if err := h.send(conn, entry); err != nil {
				h.logger.Debug("Failed to send initial logs", zap.Error(err))
				return
			}
		}
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	entryChan := make(chan logger.LogEntry, 100)
	go func() {
		if err := h.logReader.TailLogs(ctx, category, entryChan); err != nil {
			h.logger.Error("Log tailing error", zap.Error(err))
		}
	}()

	// Reads only detect the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-entryChan:
			if err := h.send(conn, entry); err != nil {
				h.logger.Debug("Failed to send log entry", zap.Error(err))
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}

		case <-ctx.Done():
			h.logger.Info("WebSocket client disconnected",
				zap.String("category", string(category)),
				zap.String("remote_addr", c.Request.RemoteAddr))
			return
		}
	}
}

func (h *LogWebSocketHandler) send(conn *websocket.Conn, entry logger.LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}
