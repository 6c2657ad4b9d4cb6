package infrastructure

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

// NotificationService handles sending notifications
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	var name string
	var args []string
	switch n.config.Method {
	case "osascript":
		name, args = "osascript", []string{"-e", n.appleScript(title, message)}
	case "notify-send":
		name, args = "notify-send", []string{title, message}
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err := n.run(name, args...); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", name),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// appleScript builds a display notification statement with quoted strings.
func (n *NotificationService) appleScript(title, message string) string {
	script := fmt.Sprintf(`display notification %s with title %s`, appleQuote(message), appleQuote(title))
	if n.config.Sound {
		script += ` sound name "Glass"`
	}
	return script
}

func appleQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// NotifyDownloadQueued sends notification when download is queued
func (n *NotificationService) NotifyDownloadQueued(download *domain.Download) {
	n.Send("Download Queued", fmt.Sprintf("Added to queue: %s", shortTarget(download.URL)))
}

// NotifyDownloadStarted sends notification when download starts
func (n *NotificationService) NotifyDownloadStarted(download *domain.Download) {
	n.Send("Download Started", fmt.Sprintf("Processing: %s", shortTarget(download.URL)))
}

// NotifyDownloadCompleted sends notification when download completes
func (n *NotificationService) NotifyDownloadCompleted(download *domain.Download) {
	n.Send("Download Completed", fmt.Sprintf("Saved %s (%s)",
		filepath.Base(download.FilePath), humanize.IBytes(uint64(download.BytesWritten))))
}

// NotifyDownloadFailed sends notification when download fails
func (n *NotificationService) NotifyDownloadFailed(download *domain.Download, err error) {
	n.Send("Download Failed", fmt.Sprintf("%s: %s", shortTarget(download.URL), domain.KindOf(err)))
}

// NotifyQueueEmpty sends notification when queue is empty
func (n *NotificationService) NotifyQueueEmpty() {
	n.Send("Queue Empty", "All downloads completed")
}

// shortTarget names a page by its video id when it has one.
func shortTarget(rawURL string) string {
	if id := VideoID(rawURL); id != "" {
		if u := Uploader(rawURL); u != "" {
			return "@" + u + "/" + id
		}
		return id
	}
	return truncateString(rawURL, 40)
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
