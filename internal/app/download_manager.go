package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

var (
	// ErrNotFound is returned for unknown download ids.
	ErrNotFound = errors.New("download not found")
	// ErrAlreadyActive is returned when a download is already being processed.
	ErrAlreadyActive = errors.New("download already active")
)

// Notifier receives download lifecycle events.
type Notifier interface {
	NotifyDownloadQueued(download *domain.Download)
	NotifyDownloadStarted(download *domain.Download)
	NotifyDownloadCompleted(download *domain.Download)
	NotifyDownloadFailed(download *domain.Download, err error)
	NotifyQueueEmpty()
}

type nopNotifier struct{}

func (nopNotifier) NotifyDownloadQueued(*domain.Download)        {}
func (nopNotifier) NotifyDownloadStarted(*domain.Download)       {}
func (nopNotifier) NotifyDownloadCompleted(*domain.Download)     {}
func (nopNotifier) NotifyDownloadFailed(*domain.Download, error) {}
func (nopNotifier) NotifyQueueEmpty()                            {}

// activeDownload is a download that holds or waits for a platform slot.
type activeDownload struct {
	cancel    context.CancelFunc
	cancelled bool
	deleted   bool
	progress  domain.ProgressState
}

// DownloadManager manages download operations
type DownloadManager struct {
	repo        domain.DownloadRepository
	downloaders map[domain.Platform]domain.Downloader
	notifier    Notifier
	config      *domain.DownloadConfig
	logger      *zap.Logger
	semaphores  map[domain.Platform]*semaphore.Weighted
	active      map[string]*activeDownload
	mu          sync.Mutex
}

// NewDownloadManager creates a new download manager
func NewDownloadManager(
	repo domain.DownloadRepository,
	downloaders map[domain.Platform]domain.Downloader,
	notifier Notifier,
	config *domain.DownloadConfig,
	logger *zap.Logger,
) *DownloadManager {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// One slot pool per platform; platforms do not block each other
	limit := int64(config.ConcurrentLimit)
	if limit < 1 {
		limit = 1
	}
	semaphores := make(map[domain.Platform]*semaphore.Weighted, len(downloaders))
	for platform := range downloaders {
		semaphores[platform] = semaphore.NewWeighted(limit)
	}

	return &DownloadManager{
		repo:        repo,
		downloaders: downloaders,
		notifier:    notifier,
		config:      config,
		logger:      logger,
		semaphores:  semaphores,
		active:      make(map[string]*activeDownload),
	}
}

// ProcessDownload runs one queued download to a terminal state, retrying
// failed attempts up to MaxRetries times. It returns ErrAlreadyActive when
// the same download is already being processed.
func (dm *DownloadManager) ProcessDownload(ctx context.Context, download *domain.Download) error {
	downloader, ok := dm.downloaders[download.Platform]
	if !ok {
		err := fmt.Errorf("no downloader for platform: %s", download.Platform)
		dm.fail(download, err)
		return err
	}
	sem := dm.semaphores[download.Platform]

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !dm.claim(download.ID, cancel) {
		return ErrAlreadyActive
	}
	defer dm.release(download.ID)

	if err := sem.Acquire(ctx, 1); err != nil {
		return dm.interrupted(download, err)
	}
	defer sem.Release(1)

	if err := downloader.Validate(download.URL); err != nil {
		dm.fail(download, err)
		return err
	}

	dm.logger.Info("Processing download",
		zap.String("id", download.ID),
		zap.String("url", download.URL),
		zap.String("platform", string(download.Platform)))

	download.MarkProcessing()
	if err := dm.repo.Update(download); err != nil {
		return fmt.Errorf("failed to update download status: %w", err)
	}
	dm.notifier.NotifyDownloadStarted(download)

	progress := dm.progressCallback(download.ID)

	var lastErr error
	for attempt := 0; attempt <= dm.config.MaxRetries; attempt++ {
		if attempt > 0 {
			dm.logger.Info("Retrying download",
				zap.String("id", download.ID),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", dm.config.MaxRetries))

			select {
			case <-time.After(dm.config.RetryDelay):
			case <-ctx.Done():
				return dm.interrupted(download, lastErr)
			}

			download.IncrementRetry()
			if err := dm.repo.Update(download); err != nil {
				dm.logger.Warn("Failed to record retry", zap.String("id", download.ID), zap.Error(err))
			}
		}

		err := downloader.Download(ctx, download, progress)
		if err == nil {
			download.MarkCompleted(download.FilePath, download.BytesWritten)
			if dm.isDeleted(download.ID) {
				return nil
			}
			if err := dm.repo.Update(download); err != nil {
				dm.logger.Error("Failed to update download status", zap.Error(err))
			}

			dm.logger.Info("Download completed",
				zap.String("id", download.ID),
				zap.String("url", download.URL),
				zap.String("file", download.FilePath),
				zap.Int64("bytes", download.BytesWritten))

			dm.notifier.NotifyDownloadCompleted(download)
			return nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return dm.interrupted(download, err)
		}

		dm.logger.Warn("Download attempt failed",
			zap.String("id", download.ID),
			zap.Int("attempt", attempt),
			zap.String("kind", domain.KindOf(err).String()),
			zap.Error(err))

		// A bad header fails the same way every time
		if domain.KindOf(err) == domain.KindHeader {
			break
		}
	}

	dm.fail(download, lastErr)
	return lastErr
}

// isDeleted reports whether DeleteDownload removed id while it was active.
func (dm *DownloadManager) isDeleted(id string) bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	a, ok := dm.active[id]
	return ok && a.deleted
}

// fail records a terminal failure.
func (dm *DownloadManager) fail(download *domain.Download, err error) {
	download.MarkFailed(err)
	if dm.isDeleted(download.ID) {
		return
	}
	if uerr := dm.repo.Update(download); uerr != nil {
		dm.logger.Error("Failed to update download status", zap.Error(uerr))
	}

	dm.logger.Error("Download failed",
		zap.String("id", download.ID),
		zap.String("url", download.URL),
		zap.String("kind", domain.KindOf(err).String()),
		zap.Error(err))

	dm.notifier.NotifyDownloadFailed(download, err)
}

// interrupted handles a context that ended mid-download. A user cancel marks
// the row cancelled; a shutdown leaves it for orphan recovery on next start.
func (dm *DownloadManager) interrupted(download *domain.Download, cause error) error {
	if cause == nil {
		cause = context.Canceled
	}

	dm.mu.Lock()
	a := dm.active[download.ID]
	userCancelled := a != nil && a.cancelled
	deleted := a != nil && a.deleted
	dm.mu.Unlock()

	if deleted {
		dm.logger.Info("Deleted download stopped", zap.String("id", download.ID))
		return cause
	}

	if !userCancelled {
		dm.logger.Warn("Download interrupted",
			zap.String("id", download.ID),
			zap.Error(cause))
		return cause
	}

	download.MarkCancelled()
	if err := dm.repo.Update(download); err != nil {
		dm.logger.Error("Failed to update download status", zap.Error(err))
	}
	dm.logger.Info("Download cancelled", zap.String("id", download.ID))
	return cause
}

func (dm *DownloadManager) claim(id string, cancel context.CancelFunc) bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if _, ok := dm.active[id]; ok {
		return false
	}
	dm.active[id] = &activeDownload{cancel: cancel, progress: domain.NewProgressState(-1)}
	return true
}

func (dm *DownloadManager) release(id string) {
	dm.mu.Lock()
	delete(dm.active, id)
	dm.mu.Unlock()
}

func (dm *DownloadManager) progressCallback(id string) domain.DownloadProgressCallback {
	return func(written, total int64) {
		dm.mu.Lock()
		defer dm.mu.Unlock()
		if a, ok := dm.active[id]; ok {
			a.progress = domain.NewProgressState(total)
			a.progress.Written = written
		}
	}
}

// IsActive reports whether id is being processed or waiting for a slot.
func (dm *DownloadManager) IsActive(id string) bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	_, ok := dm.active[id]
	return ok
}

// GetProgress returns the live byte count of an active download.
func (dm *DownloadManager) GetProgress(id string) (domain.ProgressState, bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	a, ok := dm.active[id]
	if !ok {
		return domain.ProgressState{}, false
	}
	return a.progress, true
}

func (dm *DownloadManager) find(id string) (*domain.Download, error) {
	download, err := dm.repo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load download %s: %w", id, err)
	}
	if download == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return download, nil
}

// CancelDownload cancels a download. An active transfer is interrupted and
// its part file is left in place.
func (dm *DownloadManager) CancelDownload(id string) error {
	dm.mu.Lock()
	if a, ok := dm.active[id]; ok {
		a.cancelled = true
		a.cancel()
		dm.mu.Unlock()
		dm.logger.Info("Cancelling active download", zap.String("id", id))
		return nil
	}
	dm.mu.Unlock()

	download, err := dm.find(id)
	if err != nil {
		return err
	}

	if download.IsTerminal() {
		return fmt.Errorf("download already in terminal state: %s", download.Status)
	}

	download.MarkCancelled()
	if err := dm.repo.Update(download); err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}

	dm.logger.Info("Download cancelled", zap.String("id", id))
	return nil
}

// RetryDownload re-queues a failed or cancelled download
func (dm *DownloadManager) RetryDownload(id string) error {
	download, err := dm.find(id)
	if err != nil {
		return err
	}

	switch {
	case download.IsPending():
		return fmt.Errorf("download is already queued")
	case download.IsProcessing():
		return fmt.Errorf("download is currently processing")
	case download.Status == domain.StatusCompleted:
		return fmt.Errorf("download already completed")
	}

	download.ResetForRetry()
	if err := dm.repo.Update(download); err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}

	dm.logger.Info("Download queued for retry", zap.String("id", id))
	return nil
}

// DeleteDownload cancels id if it is active and removes its record.
func (dm *DownloadManager) DeleteDownload(id string) error {
	if _, err := dm.find(id); err != nil {
		return err
	}

	dm.mu.Lock()
	if a, ok := dm.active[id]; ok {
		a.cancelled = true
		a.deleted = true
		a.cancel()
	}
	dm.mu.Unlock()

	if err := dm.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}

	dm.logger.Info("Download deleted", zap.String("id", id))
	return nil
}
