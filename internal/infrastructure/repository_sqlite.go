package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

// filterColumns are the columns FindAll accepts as filter keys.
var filterColumns = map[string]bool{
	"status":   true,
	"platform": true,
	"url":      true,
}

// sqlitePragmas let the API read while a worker writes. Writers are
// serialised by the single open connection.
const sqlitePragmas = "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"

// SQLiteDownloadRepository stores the download queue in a SQLite file.
type SQLiteDownloadRepository struct {
	db *gorm.DB
}

// NewSQLiteDownloadRepository opens (creating if needed) the database at
// dbPath and migrates the downloads table.
func NewSQLiteDownloadRepository(dbPath string) (*SQLiteDownloadRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open("file:"+dbPath+"?"+sqlitePragmas), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&domain.Download{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteDownloadRepository{db: db}, nil
}

// Create creates a new download
func (r *SQLiteDownloadRepository) Create(download *domain.Download) error {
	return r.db.Create(download).Error
}

// Update writes every column of an existing download. A row that no longer
// exists is left absent.
func (r *SQLiteDownloadRepository) Update(download *domain.Download) error {
	return r.db.Model(download).Select("*").Omit("id", "created_at").Updates(download).Error
}

// Delete deletes a download by ID
func (r *SQLiteDownloadRepository) Delete(id string) error {
	return r.db.Delete(&domain.Download{}, "id = ?", id).Error
}

// FindByID returns the download with id, or nil when there is none.
func (r *SQLiteDownloadRepository) FindByID(id string) (*domain.Download, error) {
	return first(r.db.Where("id = ?", id))
}

// FindByURL returns the newest download for url in one of statuses, or nil.
func (r *SQLiteDownloadRepository) FindByURL(url string, statuses []domain.DownloadStatus) (*domain.Download, error) {
	return first(r.db.Where("url = ? AND status IN ?", url, statuses).Order("created_at DESC"))
}

// first runs query for one row; no row is (nil, nil).
func first(query *gorm.DB) (*domain.Download, error) {
	var download domain.Download
	err := query.Take(&download).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &download, nil
}

// FindPending finds all pending downloads ordered by priority and creation time
func (r *SQLiteDownloadRepository) FindPending() ([]*domain.Download, error) {
	var downloads []*domain.Download
	err := r.db.Where("status = ?", domain.StatusQueued).
		Order("priority DESC, created_at ASC").
		Find(&downloads).Error
	return downloads, err
}

// FindAll lists downloads newest first. Filters match status, platform or
// url; a slice value matches any of its elements.
func (r *SQLiteDownloadRepository) FindAll(filters map[string]interface{}) ([]*domain.Download, error) {
	var downloads []*domain.Download
	query := r.db

	for key, value := range filters {
		if !filterColumns[key] {
			return nil, fmt.Errorf("unsupported filter: %s", key)
		}
		switch value.(type) {
		case []string, []domain.DownloadStatus, []domain.Platform:
			query = query.Where(fmt.Sprintf("%s IN ?", key), value)
		default:
			query = query.Where(fmt.Sprintf("%s = ?", key), value)
		}
	}

	err := query.Order("created_at DESC").Find(&downloads).Error
	return downloads, err
}

// CountActive returns the number of active downloads (queued + processing)
func (r *SQLiteDownloadRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&domain.Download{}).
		Where("status IN ?", []domain.DownloadStatus{domain.StatusQueued, domain.StatusProcessing}).
		Count(&count).Error
	return count, err
}

// ResetOrphanedProcessing re-queues rows a crashed run left in processing.
func (r *SQLiteDownloadRepository) ResetOrphanedProcessing() (int64, error) {
	result := r.db.Model(&domain.Download{}).
		Where("status = ?", domain.StatusProcessing).
		Updates(map[string]interface{}{
			"status":     domain.StatusQueued,
			"started_at": nil,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// GetStats counts downloads per status in one query.
func (r *SQLiteDownloadRepository) GetStats() (*domain.DownloadStats, error) {
	var rows []struct {
		Status domain.DownloadStatus
		Count  int64
	}
	if err := r.db.Model(&domain.Download{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := &domain.DownloadStats{}
	counters := map[domain.DownloadStatus]*int64{
		domain.StatusQueued:     &stats.Queued,
		domain.StatusProcessing: &stats.Processing,
		domain.StatusCompleted:  &stats.Completed,
		domain.StatusFailed:     &stats.Failed,
		domain.StatusCancelled:  &stats.Cancelled,
	}
	for _, row := range rows {
		stats.Total += row.Count
		if c, ok := counters[row.Status]; ok {
			*c = row.Count
		}
	}
	return stats, nil
}

// Close closes the database connection
func (r *SQLiteDownloadRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
