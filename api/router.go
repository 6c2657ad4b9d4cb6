package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/tiktok-extract-go/api/handlers"
	"github.com/yourusername/tiktok-extract-go/api/middleware"
	"github.com/yourusername/tiktok-extract-go/internal/app"
	"github.com/yourusername/tiktok-extract-go/pkg/logger"
)

// SetupRouter sets up the HTTP router. Access and error entries go through
// logAdapter; logsDir is where the log endpoints read category files.
func SetupRouter(
	queueMgr *app.QueueManager,
	downloadMgr *app.DownloadManager,
	extractor handlers.MediaExtractor,
	logAdapter *logger.LoggerAdapter,
	logsDir string,
) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logAdapter))
	router.Use(middleware.Recovery(logAdapter))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(queueMgr)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Download endpoints
		downloadHandler := handlers.NewDownloadHandler(queueMgr, downloadMgr, logAdapter.General())
		downloads := v1.Group("/downloads")
		{
			downloads.POST("", downloadHandler.AddDownload)
			downloads.GET("", downloadHandler.ListDownloads)
			downloads.GET("/stats", downloadHandler.GetStats)
			downloads.GET("/:id", downloadHandler.GetDownload)
			downloads.GET("/:id/progress", downloadHandler.GetProgress)
			downloads.POST("/:id/cancel", downloadHandler.CancelDownload)
			downloads.POST("/:id/retry", downloadHandler.RetryDownload)
			downloads.DELETE("/:id", downloadHandler.DeleteDownload)
		}

		// One-shot extraction
		extractHandler := handlers.NewExtractHandler(extractor, logAdapter.Download())
		v1.POST("/extract", extractHandler.Extract)

		// Log endpoints
		logHandler := handlers.NewLogHandler(logsDir)
		wsHandler := handlers.NewLogWebSocketHandler(logsDir, logAdapter.General())
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/stream", wsHandler.HandleWebSocket)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
