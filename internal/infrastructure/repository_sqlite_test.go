package infrastructure

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

func setupTestRepo(t *testing.T) *SQLiteDownloadRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "config", "test.db")
	repo, err := NewSQLiteDownloadRepository(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestDownload(url string) *domain.Download {
	return domain.NewDownload(url, domain.PlatformTikTok)
}

func TestRepository_CreateAndFindByID(t *testing.T) {
	repo := setupTestRepo(t)

	dl := newTestDownload("https://www.tiktok.com/@a/video/1")
	require.NoError(t, repo.Create(dl))

	found, err := repo.FindByID(dl.ID)
	require.NoError(t, err)
	assert.Equal(t, dl.URL, found.URL)
	assert.Equal(t, domain.StatusQueued, found.Status)
	assert.Equal(t, domain.PlatformTikTok, found.Platform)
}

func TestRepository_UpdatePersistsTransferFields(t *testing.T) {
	repo := setupTestRepo(t)

	dl := newTestDownload("https://www.tiktok.com/@a/video/1")
	require.NoError(t, repo.Create(dl))

	dl.MediaURL = "https://cdn.example/v.mp4"
	dl.MarkCompleted("/tmp/1.mp4", 10)
	require.NoError(t, repo.Update(dl))

	found, err := repo.FindByID(dl.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, found.Status)
	assert.Equal(t, "/tmp/1.mp4", found.FilePath)
	assert.Equal(t, int64(10), found.BytesWritten)
	assert.Equal(t, "https://cdn.example/v.mp4", found.MediaURL)
	assert.NotNil(t, found.CompletedAt)
}

func TestRepository_Delete(t *testing.T) {
	repo := setupTestRepo(t)

	dl := newTestDownload("https://www.tiktok.com/@a/video/1")
	require.NoError(t, repo.Create(dl))
	require.NoError(t, repo.Delete(dl.ID))

	got, err := repo.FindByID(dl.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_UpdateDoesNotRecreateDeleted(t *testing.T) {
	repo := setupTestRepo(t)

	dl := newTestDownload("https://www.tiktok.com/@a/video/2")
	require.NoError(t, repo.Create(dl))
	require.NoError(t, repo.Delete(dl.ID))

	dl.MarkCancelled()
	require.NoError(t, repo.Update(dl))

	got, err := repo.FindByID(dl.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_UpdateWritesZeroValues(t *testing.T) {
	repo := setupTestRepo(t)

	dl := newTestDownload("https://www.tiktok.com/@a/video/3")
	dl.MarkFailed(errors.New("boom"))
	dl.RetryCount = 2
	require.NoError(t, repo.Create(dl))

	dl.ResetForRetry()
	require.NoError(t, repo.Update(dl))

	got, err := repo.FindByID(dl.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusQueued, got.Status)
	assert.Zero(t, got.RetryCount)
	assert.Empty(t, got.ErrorMessage)
}

func TestFindByURL_ReturnsMatchingDownload(t *testing.T) {
	repo := setupTestRepo(t)

	// Create a completed download
	dl := newTestDownload("https://www.tiktok.com/@a/video/123")
	dl.MarkCompleted("/path/to/file.mp4", 1)
	require.NoError(t, repo.Create(dl))

	// Should find it when searching for completed status
	found, err := repo.FindByURL("https://www.tiktok.com/@a/video/123", []domain.DownloadStatus{domain.StatusCompleted})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, dl.ID, found.ID)
	assert.Equal(t, domain.StatusCompleted, found.Status)
}

func TestFindByURL_ReturnsNilWhenNoMatch(t *testing.T) {
	repo := setupTestRepo(t)

	found, err := repo.FindByURL("https://www.tiktok.com/@a/video/999", []domain.DownloadStatus{domain.StatusQueued, domain.StatusCompleted})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFindByURL_FiltersOnStatus(t *testing.T) {
	repo := setupTestRepo(t)

	dl := newTestDownload("https://www.tiktok.com/@a/video/456")
	dl.MarkFailed(assert.AnError)
	require.NoError(t, repo.Create(dl))

	found, err := repo.FindByURL(dl.URL, []domain.DownloadStatus{
		domain.StatusQueued,
		domain.StatusProcessing,
		domain.StatusCompleted,
	})
	require.NoError(t, err)
	assert.Nil(t, found, "failed download should not match active statuses")

	found, err = repo.FindByURL(dl.URL, []domain.DownloadStatus{domain.StatusFailed})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, dl.ID, found.ID)
}

func TestFindByURL_ReturnsMostRecent(t *testing.T) {
	repo := setupTestRepo(t)

	url := "https://www.tiktok.com/@a/video/789"

	old := newTestDownload(url)
	old.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(old))

	newer := newTestDownload(url)
	require.NoError(t, repo.Create(newer))

	found, err := repo.FindByURL(url, []domain.DownloadStatus{domain.StatusQueued})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, newer.ID, found.ID)
}

func TestFindPending_OrdersByPriorityThenAge(t *testing.T) {
	repo := setupTestRepo(t)

	first := newTestDownload("https://www.tiktok.com/@a/video/1")
	first.CreatedAt = time.Now().Add(-2 * time.Minute)
	second := newTestDownload("https://www.tiktok.com/@a/video/2")
	second.CreatedAt = time.Now().Add(-time.Minute)
	urgent := newTestDownload("https://www.tiktok.com/@a/video/3")
	urgent.Priority = 5
	done := newTestDownload("https://www.tiktok.com/@a/video/4")
	done.MarkCompleted("/tmp/4.mp4", 1)

	for _, dl := range []*domain.Download{first, second, urgent, done} {
		require.NoError(t, repo.Create(dl))
	}

	pending, err := repo.FindPending()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, urgent.ID, pending[0].ID)
	assert.Equal(t, first.ID, pending[1].ID)
	assert.Equal(t, second.ID, pending[2].ID)
}

func TestFindAll_Filters(t *testing.T) {
	repo := setupTestRepo(t)

	queued := newTestDownload("https://www.tiktok.com/@a/video/1")
	failed := newTestDownload("https://www.tiktok.com/@a/video/2")
	failed.MarkFailed(assert.AnError)
	require.NoError(t, repo.Create(queued))
	require.NoError(t, repo.Create(failed))

	all, err := repo.FindAll(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyFailed, err := repo.FindAll(map[string]interface{}{"status": domain.StatusFailed})
	require.NoError(t, err)
	require.Len(t, onlyFailed, 1)
	assert.Equal(t, failed.ID, onlyFailed[0].ID)

	_, err = repo.FindAll(map[string]interface{}{"1=1; DROP TABLE downloads; --": 1})
	assert.Error(t, err)
}

func TestCountActiveAndStats(t *testing.T) {
	repo := setupTestRepo(t)

	queued := newTestDownload("https://www.tiktok.com/@a/video/1")
	processing := newTestDownload("https://www.tiktok.com/@a/video/2")
	processing.MarkProcessing()
	completed := newTestDownload("https://www.tiktok.com/@a/video/3")
	completed.MarkCompleted("/tmp/3.mp4", 1)
	cancelled := newTestDownload("https://www.tiktok.com/@a/video/4")
	cancelled.MarkCancelled()

	for _, dl := range []*domain.Download{queued, processing, completed, cancelled} {
		require.NoError(t, repo.Create(dl))
	}

	active, err := repo.CountActive()
	require.NoError(t, err)
	assert.Equal(t, int64(2), active)

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, &domain.DownloadStats{
		Total: 4, Queued: 1, Processing: 1, Completed: 1, Cancelled: 1,
	}, stats)
}

func TestResetOrphanedProcessing(t *testing.T) {
	repo := setupTestRepo(t)

	stuck := newTestDownload("https://www.tiktok.com/@a/video/1")
	stuck.MarkProcessing()
	done := newTestDownload("https://www.tiktok.com/@a/video/2")
	done.MarkCompleted("/tmp/2.mp4", 1)
	require.NoError(t, repo.Create(stuck))
	require.NoError(t, repo.Create(done))

	n, err := repo.ResetOrphanedProcessing()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	found, err := repo.FindByID(stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, found.Status)
	assert.Nil(t, found.StartedAt)

	found, err = repo.FindByID(done.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, found.Status)
}
