package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDownload(t *testing.T) {
	url := "https://www.tiktok.com/@user/video/7234567890123456789"

	download := NewDownload(url, PlatformTikTok)

	assert.NotEmpty(t, download.ID)
	assert.Equal(t, url, download.URL)
	assert.Equal(t, PlatformTikTok, download.Platform)
	assert.Equal(t, StatusQueued, download.Status)
	assert.Equal(t, 0, download.Priority)
	assert.Equal(t, 0, download.RetryCount)
	assert.Zero(t, download.BytesWritten)
}

func TestDownload_MarkProcessing(t *testing.T) {
	download := NewDownload("https://www.tiktok.com/@u/video/1", PlatformTikTok)

	download.MarkProcessing()

	assert.Equal(t, StatusProcessing, download.Status)
	assert.NotNil(t, download.StartedAt)
}

func TestDownload_MarkCompleted(t *testing.T) {
	download := NewDownload("https://www.tiktok.com/@u/video/1", PlatformTikTok)
	download.ErrorMessage = "previous attempt failed"

	download.MarkCompleted("/path/to/file.mp4", 1024)

	assert.Equal(t, StatusCompleted, download.Status)
	assert.Equal(t, "/path/to/file.mp4", download.FilePath)
	assert.Equal(t, int64(1024), download.BytesWritten)
	assert.Empty(t, download.ErrorMessage)
	assert.NotNil(t, download.CompletedAt)
}

func TestDownload_MarkFailed(t *testing.T) {
	download := NewDownload("https://www.tiktok.com/@u/video/1", PlatformTikTok)

	download.MarkFailed(errors.New("download failed"))

	assert.Equal(t, StatusFailed, download.Status)
	assert.Equal(t, "download failed", download.ErrorMessage)
}

func TestDownload_ResetForRetry(t *testing.T) {
	download := NewDownload("https://www.tiktok.com/@u/video/1", PlatformTikTok)
	download.MarkProcessing()
	download.MarkFailed(errors.New("boom"))
	download.RetryCount = 2

	download.ResetForRetry()

	assert.Equal(t, StatusQueued, download.Status)
	assert.Equal(t, 0, download.RetryCount)
	assert.Empty(t, download.ErrorMessage)
	assert.Nil(t, download.StartedAt)
	assert.Nil(t, download.CompletedAt)
}

func TestDownload_IncrementRetry(t *testing.T) {
	download := NewDownload("https://www.tiktok.com/@u/video/1", PlatformTikTok)

	download.IncrementRetry()
	assert.Equal(t, 1, download.RetryCount)

	download.IncrementRetry()
	assert.Equal(t, 2, download.RetryCount)
}

func TestDownload_IsTerminal(t *testing.T) {
	download := NewDownload("https://www.tiktok.com/@u/video/1", PlatformTikTok)

	assert.False(t, download.IsTerminal())

	download.Status = StatusCompleted
	assert.True(t, download.IsTerminal())

	download.MarkCancelled()
	assert.True(t, download.IsTerminal())

	download.Status = StatusFailed
	assert.False(t, download.IsTerminal())
}

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url      string
		expected Platform
	}{
		{"https://www.tiktok.com/@user/video/123", PlatformTikTok},
		{"https://tiktok.com/@user/video/123", PlatformTikTok},
		{"https://vm.tiktok.com/ZMabc123/", PlatformTikTok},
		{"https://vt.tiktok.com/ZSabc123/", PlatformTikTok},
		{"https://m.tiktok.com/v/123.html", PlatformTikTok},
		{"https://nottiktok.com/video/1", ""},
		{"https://tiktok.com.evil.example/video/1", ""},
		{"ftp://www.tiktok.com/video/1", ""},
		{"https://example.com", ""},
		{"::not a url", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectPlatform(tt.url))
		})
	}
}

func TestValidatePlatform(t *testing.T) {
	assert.True(t, ValidatePlatform(PlatformTikTok))
	assert.False(t, ValidatePlatform("x"))
	assert.False(t, ValidatePlatform(""))
}
