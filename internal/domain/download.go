package domain

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DownloadStatus represents the current status of a download
type DownloadStatus string

const (
	StatusQueued     DownloadStatus = "queued"
	StatusProcessing DownloadStatus = "processing"
	StatusCompleted  DownloadStatus = "completed"
	StatusFailed     DownloadStatus = "failed"
	StatusCancelled  DownloadStatus = "cancelled"
)

// Platform represents the source platform for downloads
type Platform string

const (
	PlatformTikTok Platform = "tiktok"
)

// Download represents a download task
type Download struct {
	ID           string         `json:"id" gorm:"primaryKey"`
	URL          string         `json:"url" gorm:"not null;index"`
	Platform     Platform       `json:"platform" gorm:"not null"`
	Status       DownloadStatus `json:"status" gorm:"not null;index"`
	Priority     int            `json:"priority" gorm:"default:0;index"`
	RetryCount   int            `json:"retry_count" gorm:"default:0"`
	ErrorMessage string         `json:"error_message,omitempty"`
	MediaURL     string         `json:"media_url,omitempty"`
	FilePath     string         `json:"file_path,omitempty"`
	BytesWritten int64          `json:"bytes_written"`
	Metadata     string         `json:"metadata,omitempty" gorm:"type:text"` // JSON metadata
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// NewDownload creates a new download task
func NewDownload(rawURL string, platform Platform) *Download {
	now := time.Now()
	return &Download{
		ID:        uuid.New().String(),
		URL:       rawURL,
		Platform:  platform,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkProcessing marks the download as processing
func (d *Download) MarkProcessing() {
	d.Status = StatusProcessing
	now := time.Now()
	d.StartedAt = &now
	d.UpdatedAt = now
}

// MarkCompleted marks the download as completed
func (d *Download) MarkCompleted(filePath string, bytesWritten int64) {
	d.Status = StatusCompleted
	d.FilePath = filePath
	d.BytesWritten = bytesWritten
	d.ErrorMessage = ""
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
}

// MarkFailed marks the download as failed
func (d *Download) MarkFailed(err error) {
	d.Status = StatusFailed
	d.ErrorMessage = err.Error()
	d.UpdatedAt = time.Now()
}

// MarkCancelled marks the download as cancelled
func (d *Download) MarkCancelled() {
	d.Status = StatusCancelled
	d.UpdatedAt = time.Now()
}

// ResetForRetry puts a failed or cancelled download back in the queue.
func (d *Download) ResetForRetry() {
	d.Status = StatusQueued
	d.RetryCount = 0
	d.ErrorMessage = ""
	d.StartedAt = nil
	d.CompletedAt = nil
	d.UpdatedAt = time.Now()
}

// IncrementRetry increments the retry count
func (d *Download) IncrementRetry() {
	d.RetryCount++
	d.UpdatedAt = time.Now()
}

// IsTerminal checks if the download is in a terminal state
func (d *Download) IsTerminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusCancelled
}

// IsPending checks if the download is pending
func (d *Download) IsPending() bool {
	return d.Status == StatusQueued
}

// IsProcessing checks if the download is currently processing
func (d *Download) IsProcessing() bool {
	return d.Status == StatusProcessing
}

// IsTikTokHost reports whether host is tiktok.com or one of its subdomains
// (www., m., vm., vt.).
func IsTikTokHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "tiktok.com" || strings.HasSuffix(host, ".tiktok.com")
}

// DetectPlatform detects the platform from a URL
func DetectPlatform(rawURL string) Platform {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	if IsTikTokHost(u.Hostname()) {
		return PlatformTikTok
	}
	return ""
}

// ValidatePlatform checks if a platform is valid
func ValidatePlatform(platform Platform) bool {
	return platform == PlatformTikTok
}
