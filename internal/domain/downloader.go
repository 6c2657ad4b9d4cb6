package domain

import "context"

// DownloadProgressCallback receives the running byte count and the declared
// total (-1 when the server did not send a length).
type DownloadProgressCallback func(written, total int64)

// Downloader defines the interface for platform-specific downloaders
type Downloader interface {
	// Download fetches the media behind download.URL and records the outcome
	// (file path, byte count, metadata) on download. It makes a single attempt.
	Download(ctx context.Context, download *Download, progress DownloadProgressCallback) error

	// Platform returns the platform this downloader handles
	Platform() Platform

	// Validate validates if the downloader can handle the given URL
	Validate(url string) error
}
