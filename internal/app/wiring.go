package app

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
	"github.com/yourusername/tiktok-extract-go/internal/infrastructure"
)

// DownloaderDirs are the working directories under the configured base dir.
func DownloaderDirs(config *domain.Config) infrastructure.TikTokDownloaderDirs {
	return infrastructure.TikTokDownloaderDirs{
		Completed: config.Download.CompletedDir(),
		Logs:      config.Download.LogsDir(),
		Debug:     config.Download.DebugDir(),
	}
}

// NewTikTokDownloader builds the shared HTTP client and the TikTok downloader
// from config. The server and the CLI both use it.
func NewTikTokDownloader(config *domain.Config, dirs infrastructure.TikTokDownloaderDirs, log *zap.Logger) (*infrastructure.TikTokDownloader, error) {
	client, err := infrastructure.NewHTTPClient(infrastructure.HTTPClientOptions{
		ProxyURL: config.HTTP.ProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}

	return infrastructure.NewTikTokDownloader(&config.HTTP, &config.TikTok, client, dirs, log)
}

// CreateDirectories creates the working directories under the base dir.
func CreateDirectories(config *domain.Config) error {
	dirs := []string{
		config.Download.BaseDir,
		config.Download.CompletedDir(),
		config.Download.CookiesDir(),
		config.Download.LogsDir(),
		config.Download.ConfigDir(),
		config.Download.DebugDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// LeftoverPartFiles lists the part files an interrupted run left in dir.
func LeftoverPartFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var parts []string
	for _, e := range entries {
		if !e.IsDir() && domain.IsPartPath(e.Name()) {
			parts = append(parts, filepath.Join(dir, e.Name()))
		}
	}
	return parts, nil
}
