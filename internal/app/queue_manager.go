package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
	"github.com/yourusername/tiktok-extract-go/pkg/logger"
)

// ErrUnsupportedURL is returned by AddDownload for URLs no downloader handles.
var ErrUnsupportedURL = errors.New("unsupported url")

// QueueManager manages the download queue
type QueueManager struct {
	repo        domain.DownloadRepository
	downloadMgr *DownloadManager
	notifier    Notifier
	config      *domain.QueueConfig
	multiLogger *logger.MultiLogger
	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	exitChan    chan struct{}
	inflight    map[string]struct{}
	workerWg    sync.WaitGroup
}

// NewQueueManager creates a new queue manager
func NewQueueManager(
	repo domain.DownloadRepository,
	downloadMgr *DownloadManager,
	notifier Notifier,
	config *domain.QueueConfig,
	multiLogger *logger.MultiLogger,
) *QueueManager {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &QueueManager{
		repo:        repo,
		downloadMgr: downloadMgr,
		notifier:    notifier,
		config:      config,
		multiLogger: multiLogger,
		exitChan:    make(chan struct{}),
		inflight:    make(map[string]struct{}),
	}
}

// Start re-queues downloads orphaned by a previous run and starts the queue
// processor.
func (qm *QueueManager) Start(ctx context.Context) error {
	qm.mu.Lock()
	if qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager already running")
	}
	qm.running = true
	ctx, qm.cancel = context.WithCancel(ctx)
	qm.exitChan = make(chan struct{})
	exitChan := qm.exitChan
	qm.mu.Unlock()

	reset, err := qm.repo.ResetOrphanedProcessing()
	if err != nil {
		qm.logAppError("Failed to reset orphaned downloads", zap.Error(err))
	} else if reset > 0 {
		qm.logEvent("orphans_requeued", zap.Int64("count", reset))
	}

	qm.logEvent("queue_started")

	qm.workerWg.Add(1)
	go qm.processQueue(ctx, exitChan)

	return nil
}

// Stop stops the queue processor and waits for in-flight downloads to
// return. Interrupted downloads stay in processing until the next Start.
func (qm *QueueManager) Stop() error {
	qm.mu.Lock()
	if !qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager not running")
	}
	qm.running = false
	cancel := qm.cancel
	qm.mu.Unlock()

	qm.logEvent("queue_stopped")
	cancel()
	qm.workerWg.Wait()

	return nil
}

// IsRunning returns whether the queue manager is running
func (qm *QueueManager) IsRunning() bool {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.running
}

// WaitForExit is closed when the processor exits on its own after the queue
// has stayed empty for EmptyWaitTime.
func (qm *QueueManager) WaitForExit() <-chan struct{} {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.exitChan
}

// AddDownload queues url. A URL already queued or processing, or completed
// with its file still on disk, returns the existing download instead.
func (qm *QueueManager) AddDownload(url string, priority int) (*domain.Download, error) {
	platform := domain.DetectPlatform(url)
	if !domain.ValidatePlatform(platform) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, url)
	}

	existing, err := qm.repo.FindByURL(url, []domain.DownloadStatus{domain.StatusQueued, domain.StatusProcessing})
	if err != nil {
		return nil, fmt.Errorf("failed to check existing downloads: %w", err)
	}
	if existing != nil {
		qm.logEvent("download_duplicate",
			zap.String("id", existing.ID),
			zap.String("url", url),
			zap.String("status", string(existing.Status)))
		return existing, nil
	}

	completed, err := qm.repo.FindByURL(url, []domain.DownloadStatus{domain.StatusCompleted})
	if err != nil {
		return nil, fmt.Errorf("failed to check existing downloads: %w", err)
	}
	if completed != nil && completed.FilePath != "" {
		if _, err := os.Stat(completed.FilePath); err == nil {
			qm.logEvent("download_already_completed",
				zap.String("id", completed.ID),
				zap.String("url", url),
				zap.String("file_path", completed.FilePath))
			return completed, nil
		}
	}

	download := domain.NewDownload(url, platform)
	download.Priority = priority

	if err := qm.repo.Create(download); err != nil {
		return nil, fmt.Errorf("failed to create download: %w", err)
	}

	qm.logEvent("download_added",
		zap.String("id", download.ID),
		zap.String("url", url),
		zap.String("platform", string(platform)),
		zap.Int("priority", priority))
	qm.notifier.NotifyDownloadQueued(download)

	return download, nil
}

// GetDownload retrieves a download by ID
func (qm *QueueManager) GetDownload(id string) (*domain.Download, error) {
	download, err := qm.repo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load download %s: %w", id, err)
	}
	if download == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return download, nil
}

// ListDownloads lists all downloads with optional filters
func (qm *QueueManager) ListDownloads(filters map[string]interface{}) ([]*domain.Download, error) {
	return qm.repo.FindAll(filters)
}

// GetStats returns queue statistics
func (qm *QueueManager) GetStats() (*domain.DownloadStats, error) {
	return qm.repo.GetStats()
}

// processQueue hands pending downloads to the download manager on every tick
func (qm *QueueManager) processQueue(ctx context.Context, exitChan chan struct{}) {
	defer qm.workerWg.Done()

	ticker := time.NewTicker(qm.config.CheckInterval)
	defer ticker.Stop()

	emptyStartTime := time.Time{}
	hadWork := false

	for {
		select {
		case <-ctx.Done():
			qm.logEvent("queue_processor_stopped", zap.String("reason", "context_cancelled"))
			return
		case <-ticker.C:
			pending, err := qm.repo.FindPending()
			if err != nil {
				qm.logAppError("Failed to fetch pending downloads", zap.Error(err))
				continue
			}

			if len(pending) == 0 {
				active, err := qm.repo.CountActive()
				if err != nil || active > 0 {
					continue
				}

				if emptyStartTime.IsZero() {
					emptyStartTime = time.Now()
					qm.logEvent("queue_empty")
					if hadWork {
						qm.notifier.NotifyQueueEmpty()
						hadWork = false
					}
				} else if qm.config.AutoExitOnEmpty && time.Since(emptyStartTime) > qm.config.EmptyWaitTime {
					qm.logEvent("queue_auto_exit", zap.String("reason", "empty_timeout"))
					qm.mu.Lock()
					qm.running = false
					qm.mu.Unlock()
					close(exitChan)
					return
				}
				continue
			}

			emptyStartTime = time.Time{}
			hadWork = true

			for _, download := range pending {
				// Handed out on an earlier tick
				if !qm.markInflight(download.ID) {
					continue
				}

				qm.logEvent("download_started",
					zap.String("id", download.ID),
					zap.String("url", download.URL),
					zap.String("platform", string(download.Platform)))

				// The download manager's semaphores bound actual concurrency
				qm.workerWg.Add(1)
				go func(download *domain.Download) {
					defer qm.workerWg.Done()
					defer qm.clearInflight(download.ID)
					qm.runDownload(ctx, download)
				}(download)
			}
		}
	}
}

func (qm *QueueManager) markInflight(id string) bool {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	if _, ok := qm.inflight[id]; ok {
		return false
	}
	qm.inflight[id] = struct{}{}
	return true
}

func (qm *QueueManager) clearInflight(id string) {
	qm.mu.Lock()
	delete(qm.inflight, id)
	qm.mu.Unlock()
}

func (qm *QueueManager) runDownload(ctx context.Context, download *domain.Download) {
	err := qm.downloadMgr.ProcessDownload(ctx, download)
	switch {
	case errors.Is(err, ErrAlreadyActive):
	case err != nil:
		qm.logEvent("download_failed",
			zap.String("id", download.ID),
			zap.String("status", string(download.Status)),
			zap.Error(err))
		qm.logAppError("Failed to process download",
			zap.String("id", download.ID),
			zap.String("kind", domain.KindOf(err).String()),
			zap.Error(err))
	default:
		qm.logEvent("download_completed",
			zap.String("id", download.ID),
			zap.String("status", string(download.Status)),
			zap.String("file_path", download.FilePath),
			zap.Int64("bytes", download.BytesWritten))
	}
}

func (qm *QueueManager) logEvent(event string, fields ...zap.Field) {
	if qm.multiLogger != nil {
		qm.multiLogger.LogQueueEvent(event, fields...)
	}
}

func (qm *QueueManager) logAppError(msg string, fields ...zap.Field) {
	if qm.multiLogger != nil {
		qm.multiLogger.LogAppError(msg, fields...)
	}
}
