package domain

// DownloadRepository defines the interface for download persistence
type DownloadRepository interface {
	// Create creates a new download
	Create(download *Download) error

	// Update updates an existing download
	Update(download *Download) error

	// Delete deletes a download by ID
	Delete(id string) error

	// FindByID finds a download by ID
	FindByID(id string) (*Download, error)

	// FindByURL returns the most recent download for url whose status is one
	// of statuses, or nil when there is none.
	FindByURL(url string, statuses []DownloadStatus) (*Download, error)

	// FindPending finds all pending downloads ordered by priority and creation time
	FindPending() ([]*Download, error)

	// FindAll finds all downloads with optional filters
	FindAll(filters map[string]interface{}) ([]*Download, error)

	// CountActive returns the number of queued plus processing downloads
	CountActive() (int64, error)

	// ResetOrphanedProcessing re-queues downloads left in processing by a
	// previous run and returns how many were reset.
	ResetOrphanedProcessing() (int64, error)

	// GetStats returns download statistics
	GetStats() (*DownloadStats, error)
}

// DownloadStats represents download statistics
type DownloadStats struct {
	Total      int64 `json:"total"`
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
}
