package app

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

// mockRepo implements domain.DownloadRepository for testing
type mockRepo struct {
	mu        sync.Mutex
	downloads []*domain.Download
	orphans   int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{downloads: make([]*domain.Download, 0)}
}

func (m *mockRepo) Create(download *domain.Download) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads = append(m.downloads, download)
	return nil
}

func (m *mockRepo) Update(download *domain.Download) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.downloads {
		if d.ID == download.ID {
			m.downloads[i] = download
			return nil
		}
	}
	return nil
}

func (m *mockRepo) Delete(id string) error { return nil }

func (m *mockRepo) FindByID(id string) (*domain.Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.downloads {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) FindByURL(url string, statuses []domain.DownloadStatus) (*domain.Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.downloads) - 1; i >= 0; i-- {
		d := m.downloads[i]
		if d.URL == url {
			for _, s := range statuses {
				if d.Status == s {
					return d, nil
				}
			}
		}
	}
	return nil, nil
}

// FindPending returns copies so the processor never shares a row with the test.
func (m *mockRepo) FindPending() ([]*domain.Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*domain.Download
	for _, d := range m.downloads {
		if d.Status == domain.StatusQueued {
			c := *d
			pending = append(pending, &c)
		}
	}
	return pending, nil
}

func (m *mockRepo) FindAll(filters map[string]interface{}) ([]*domain.Download, error) {
	return nil, nil
}

func (m *mockRepo) CountActive() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.downloads {
		if d.Status == domain.StatusQueued || d.Status == domain.StatusProcessing {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) ResetOrphanedProcessing() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orphans, nil
}

func (m *mockRepo) GetStats() (*domain.DownloadStats, error) { return nil, nil }

func (m *mockRepo) status(id string) domain.DownloadStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.downloads {
		if d.ID == id {
			return d.Status
		}
	}
	return ""
}

func newTestQueueManager(repo domain.DownloadRepository) *QueueManager {
	config := &domain.QueueConfig{
		CheckInterval:   10 * time.Second,
		AutoExitOnEmpty: false,
		EmptyWaitTime:   30 * time.Second,
	}
	return NewQueueManager(repo, nil, nil, config, nil)
}

func TestAddDownload_NewURL(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	dl, err := qm.AddDownload("https://www.tiktok.com/@creator/video/123", 5)
	require.NoError(t, err)
	require.NotNil(t, dl)
	assert.Equal(t, "https://www.tiktok.com/@creator/video/123", dl.URL)
	assert.Equal(t, domain.PlatformTikTok, dl.Platform)
	assert.Equal(t, domain.StatusQueued, dl.Status)
	assert.Equal(t, 5, dl.Priority)
	assert.Len(t, repo.downloads, 1)
}

func TestAddDownload_UnsupportedURL(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	for _, u := range []string{"https://x.com/user/status/1", "ftp://www.tiktok.com/@a/video/1", "not a url"} {
		_, err := qm.AddDownload(u, 0)
		assert.ErrorIs(t, err, ErrUnsupportedURL, u)
	}
	assert.Empty(t, repo.downloads)
}

func TestAddDownload_DuplicateQueued(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	// Add first download
	first, err := qm.AddDownload("https://www.tiktok.com/@creator/video/123", 0)
	require.NoError(t, err)

	// Try to add same URL again - should return existing
	second, err := qm.AddDownload("https://www.tiktok.com/@creator/video/123", 0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "should return existing download, not create new one")
	assert.Len(t, repo.downloads, 1, "should not create a second entry")
}

func TestAddDownload_DuplicateProcessing(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	first, err := qm.AddDownload("https://www.tiktok.com/@creator/video/124", 0)
	require.NoError(t, err)
	first.MarkProcessing()

	second, err := qm.AddDownload("https://www.tiktok.com/@creator/video/124", 0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.downloads, 1)
}

func TestAddDownload_DuplicateCompleted_FileExists(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	// Create a temp file to simulate existing completed file
	tmpFile, err := os.CreateTemp(t.TempDir(), "test_download_*.mp4")
	require.NoError(t, err)
	tmpFilePath := tmpFile.Name()
	tmpFile.Close()

	// Add and complete a download
	first, err := qm.AddDownload("https://www.tiktok.com/@creator/video/exists", 0)
	require.NoError(t, err)
	first.MarkCompleted(tmpFilePath, 0)

	// Try to add same URL again - should return existing completed since file exists
	second, err := qm.AddDownload("https://www.tiktok.com/@creator/video/exists", 0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "should return existing completed download")
	assert.Equal(t, domain.StatusCompleted, second.Status)
	assert.Len(t, repo.downloads, 1, "should not create a second entry")
}

func TestAddDownload_DuplicateCompleted_FileMissing(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	// Add and complete a download with a file path that doesn't exist
	first, err := qm.AddDownload("https://www.tiktok.com/@creator/video/missing", 0)
	require.NoError(t, err)
	first.MarkCompleted("/path/to/nonexistent/file.mp4", 1024)

	// Try to add same URL again - should create NEW download since file is missing
	second, err := qm.AddDownload("https://www.tiktok.com/@creator/video/missing", 0)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID, "should create new download when file is missing")
	assert.Equal(t, domain.StatusQueued, second.Status)
	assert.Len(t, repo.downloads, 2, "should create a second entry for re-download")
}

func TestAddDownload_AllowsRetryAfterFailure(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	// Add and fail a download
	first, err := qm.AddDownload("https://www.tiktok.com/@creator/video/789", 0)
	require.NoError(t, err)
	first.MarkFailed(assert.AnError)

	// Try to add same URL again - should create NEW download since previous one failed
	second, err := qm.AddDownload("https://www.tiktok.com/@creator/video/789", 0)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID, "should create new download after failure")
	assert.Equal(t, domain.StatusQueued, second.Status)
	assert.Len(t, repo.downloads, 2, "should have two entries")
}

func TestAddDownload_AllowsRetryAfterCancellation(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	// Add and cancel a download
	first, err := qm.AddDownload("https://www.tiktok.com/@creator/video/cancel", 0)
	require.NoError(t, err)
	first.MarkCancelled()

	// Try to add same URL again - should create NEW download since previous was cancelled
	second, err := qm.AddDownload("https://www.tiktok.com/@creator/video/cancel", 0)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID, "should create new download after cancellation")
	assert.Len(t, repo.downloads, 2)
}

func TestAddDownload_NotifiesQueued(t *testing.T) {
	repo := newMockRepo()
	notifier := &recordingNotifier{}
	qm := NewQueueManager(repo, nil, notifier, &domain.QueueConfig{CheckInterval: time.Second}, nil)

	_, err := qm.AddDownload("https://www.tiktok.com/@creator/video/1", 0)
	require.NoError(t, err)
	_, err = qm.AddDownload("https://www.tiktok.com/@creator/video/1", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"queued"}, notifier.Events())
}

func TestGetDownload_NotFound(t *testing.T) {
	qm := newTestQueueManager(newMockRepo())

	_, err := qm.GetDownload("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueueManager_StartStop(t *testing.T) {
	repo := newMockRepo()
	qm := newTestQueueManager(repo)

	require.NoError(t, qm.Start(context.Background()))
	assert.True(t, qm.IsRunning())
	assert.Error(t, qm.Start(context.Background()), "second start should fail")

	require.NoError(t, qm.Stop())
	assert.False(t, qm.IsRunning())
	assert.Error(t, qm.Stop(), "second stop should fail")
}

func TestQueueManager_ProcessesPending(t *testing.T) {
	repo := newMockRepo()
	fd := &fakeDownloader{fn: succeed}
	dm := NewDownloadManager(repo, map[domain.Platform]domain.Downloader{domain.PlatformTikTok: fd},
		nil, &domain.DownloadConfig{ConcurrentLimit: 1}, nil)
	notifier := &recordingNotifier{}
	qm := NewQueueManager(repo, dm, notifier, &domain.QueueConfig{CheckInterval: 10 * time.Millisecond}, nil)

	dl, err := qm.AddDownload(testPageURL, 0)
	require.NoError(t, err)

	require.NoError(t, qm.Start(context.Background()))
	defer qm.Stop()

	require.Eventually(t, func() bool {
		return repo.status(dl.ID) == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, fd.Calls())

	require.Eventually(t, func() bool {
		events := notifier.Events()
		return len(events) > 0 && events[len(events)-1] == "empty"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueueManager_AutoExitOnEmpty(t *testing.T) {
	repo := newMockRepo()
	config := &domain.QueueConfig{
		CheckInterval:   5 * time.Millisecond,
		AutoExitOnEmpty: true,
		EmptyWaitTime:   20 * time.Millisecond,
	}
	qm := NewQueueManager(repo, nil, nil, config, nil)

	require.NoError(t, qm.Start(context.Background()))

	select {
	case <-qm.WaitForExit():
	case <-time.After(2 * time.Second):
		t.Fatal("queue manager did not exit on empty queue")
	}
	assert.False(t, qm.IsRunning())
}
