package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

// MediaExtractor resolves a page URL to its media URL.
type MediaExtractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

// ExtractHandler runs the extractor alone, without queueing a download.
type ExtractHandler struct {
	extractor MediaExtractor
	logger    *zap.Logger
}

// NewExtractHandler creates a new extract handler
func NewExtractHandler(extractor MediaExtractor, logger *zap.Logger) *ExtractHandler {
	return &ExtractHandler{extractor: extractor, logger: logger}
}

// ExtractRequest is the body of POST /api/v1/extract.
type ExtractRequest struct {
	URL string `json:"url" binding:"required"`
}

// kindStatus maps an error kind to a response code.
func kindStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindHeader:
		return http.StatusBadRequest
	case domain.KindFetch:
		return http.StatusBadGateway
	case domain.KindExtractionNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Extract handles POST /api/v1/extract
func (h *ExtractHandler) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if domain.DetectPlatform(req.URL) != domain.PlatformTikTok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported url: " + req.URL})
		return
	}

	mediaURL, err := h.extractor.Extract(c.Request.Context(), req.URL)
	if err != nil {
		kind := domain.KindOf(err)
		body := gin.H{"error": err.Error(), "kind": kind.String()}

		var derr *domain.Error
		if kind == domain.KindExtractionNotFound && errors.As(err, &derr) && derr.Path != "" {
			body["debug_path"] = derr.Path
		}

		h.logger.Warn("Extraction failed",
			zap.String("url", req.URL),
			zap.String("kind", kind.String()),
			zap.Error(err))
		c.JSON(kindStatus(kind), body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"page_url":  req.URL,
		"media_url": mediaURL,
	})
}
