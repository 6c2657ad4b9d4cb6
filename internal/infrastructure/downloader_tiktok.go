package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

var (
	videoIDPattern  = regexp.MustCompile(`/video/(\d+)`)
	uploaderPattern = regexp.MustCompile(`/@([^/?#]+)`)
)

// errCookieRequired is returned when require_cookie is set and no cookie is
// configured.
var errCookieRequired = errors.New("cookie required but none configured")

// FetchResult describes one page-to-file transfer.
type FetchResult struct {
	PageURL  string `json:"page_url"`
	MediaURL string `json:"media_url"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
}

// TikTokDownloader implements Downloader for TikTok
type TikTokDownloader struct {
	httpConfig   *domain.HTTPConfig
	config       *domain.TikTokConfig
	extractor    *Extractor
	streamer     *Streamer
	completedDir string
	logsDir      string
	logger       *zap.Logger
}

// TikTokDownloaderDirs are the working directories the downloader writes to.
type TikTokDownloaderDirs struct {
	Completed string
	Logs      string
	Debug     string
}

// NewTikTokDownloader wires an extractor and a streamer sharing client.
func NewTikTokDownloader(httpConfig *domain.HTTPConfig, config *domain.TikTokConfig, client *http.Client, dirs TikTokDownloaderDirs, logger *zap.Logger) (*TikTokDownloader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	strategy, err := NewStrategy(config.Strategy)
	if err != nil {
		return nil, err
	}
	return &TikTokDownloader{
		httpConfig:   httpConfig,
		config:       config,
		extractor:    NewExtractor(client, strategy, dirs.Debug, logger),
		streamer:     NewStreamer(client, httpConfig.ChunkSize, logger),
		completedDir: dirs.Completed,
		logsDir:      dirs.Logs,
		logger:       logger,
	}, nil
}

// Platform returns the platform this downloader handles
func (d *TikTokDownloader) Platform() domain.Platform {
	return domain.PlatformTikTok
}

// Validate accepts http(s) URLs on tiktok.com and its subdomains.
func (d *TikTokDownloader) Validate(rawURL string) error {
	if domain.DetectPlatform(rawURL) != domain.PlatformTikTok {
		return fmt.Errorf("invalid TikTok URL: %s", rawURL)
	}
	return nil
}

// Extract returns the media URL behind pageURL using the configured headers
// and cookie.
func (d *TikTokDownloader) Extract(ctx context.Context, pageURL string) (string, error) {
	cookie, err := d.ResolveCookie()
	if err != nil {
		return "", err
	}
	return d.extractor.Extract(ctx, pageURL, d.httpConfig.Headers, cookie)
}

// Fetch extracts the media URL from pageURL and streams it to dest. It makes
// exactly two requests. When streaming fails the result still carries the
// media URL and the bytes left in the part file.
func (d *TikTokDownloader) Fetch(ctx context.Context, pageURL, dest string, progress ProgressFactory) (*FetchResult, error) {
	cookie, err := d.ResolveCookie()
	if err != nil {
		return nil, err
	}

	mediaURL, err := d.extractor.Extract(ctx, pageURL, d.httpConfig.Headers, cookie)
	if err != nil {
		return nil, err
	}

	result := &FetchResult{PageURL: pageURL, MediaURL: mediaURL, Path: dest}
	result.Bytes, err = d.streamer.Fetch(ctx, mediaURL, d.httpConfig.Headers, cookie, dest, progress)
	if err != nil {
		return result, err
	}
	return result, nil
}

// ResolveCookie returns the inline cookie, else the cookie file's contents.
func (d *TikTokDownloader) ResolveCookie() (string, error) {
	cookie := d.httpConfig.Cookie
	if cookie == "" && d.httpConfig.CookieFile != "" && fileExists(d.httpConfig.CookieFile) {
		loaded, err := LoadCookieFile(d.httpConfig.CookieFile, "tiktok.com")
		if err != nil {
			return "", domain.NewIOError("read cookie file", d.httpConfig.CookieFile, err)
		}
		cookie = loaded
	}
	if cookie == "" && d.config.RequireCookie {
		return "", domain.NewHeaderError("Cookie", errCookieRequired)
	}
	return cookie, nil
}

// Download fetches a queued TikTok URL into the completed directory.
func (d *TikTokDownloader) Download(ctx context.Context, download *domain.Download, progressCallback domain.DownloadProgressCallback) error {
	if err := d.Validate(download.URL); err != nil {
		return err
	}

	processLog, err := d.openLogFile()
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer processLog.Close()

	dest := filepath.Join(d.completedDir, d.fileName(download))
	d.writeLogHeader(processLog, download.ID, download.URL, dest)

	progress := MultiProgress(
		NewCallbackProgress(progressCallback),
		NewLogProgress(d.logger, zap.String("download_id", download.ID)),
	)

	result, err := d.Fetch(ctx, download.URL, dest, progress)
	if result != nil {
		download.MediaURL = result.MediaURL
		download.BytesWritten = result.Bytes
	}
	if err != nil {
		d.writeLogFooter(processLog, false, err.Error())
		return err
	}

	download.FilePath = result.Path
	if d.config.WriteMetadata {
		if err := d.storeMetadata(download, result); err != nil {
			d.logger.Warn("Failed to store metadata",
				zap.String("download_id", download.ID),
				zap.Error(err))
		}
	}

	d.writeLogFooter(processLog, true, fmt.Sprintf("Downloaded %s (%s) from %s",
		result.Path, humanize.IBytes(uint64(result.Bytes)), result.MediaURL))
	return nil
}

// fileName is <video id>.mp4, or <download id>.mp4 for URLs without one.
func (d *TikTokDownloader) fileName(download *domain.Download) string {
	if id := VideoID(download.URL); id != "" {
		return id + ".mp4"
	}
	return download.ID + ".mp4"
}

// VideoID returns the numeric id in a /video/<id> URL path, or "".
func VideoID(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	if m := videoIDPattern.FindStringSubmatch(path); m != nil {
		return m[1]
	}
	return ""
}

// Uploader returns the @handle in a TikTok URL path, without the "@".
func Uploader(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	if m := uploaderPattern.FindStringSubmatch(path); m != nil {
		return m[1]
	}
	return ""
}

// openLogFile opens the download log file for today
func (d *TikTokDownloader) openLogFile() (*os.File, error) {
	if err := os.MkdirAll(d.logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	dateStr := time.Now().Format("20060102")
	downloadPath := filepath.Join(d.logsDir, "download-"+dateStr+".log")
	return os.OpenFile(downloadPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// writeLogHeader writes the download start marker
func (d *TikTokDownloader) writeLogHeader(file *os.File, downloadID, pageURL, dest string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(file, "\n=== [%s] Download: %s ===\n", timestamp, downloadID)
	strategy := d.config.Strategy
	if strategy == "" {
		strategy = StrategyPattern
	}
	cmdLine := CommandLine("tt-extract", "fetch", pageURL, dest, "--strategy", strategy)
	fmt.Fprintf(file, "$ %s\n", cmdLine)
}

// writeLogFooter writes the download end marker
func (d *TikTokDownloader) writeLogFooter(file *os.File, success bool, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(file, "[%s] %s: %s\n", timestamp, status, message)
	file.WriteString("=== END ===\n\n")
}

// storeMetadata records what is known about the video without a second
// page request.
func (d *TikTokDownloader) storeMetadata(download *domain.Download, result *FetchResult) error {
	now := time.Now()
	videoID := VideoID(download.URL)
	uploader := Uploader(download.URL)

	title := videoID
	if uploader != "" && videoID != "" {
		title = fmt.Sprintf("%s_%s", uploader, videoID)
	}

	metadata := map[string]interface{}{
		"id":            videoID,
		"title":         title,
		"uploader":      uploader,
		"uploader_id":   uploader,
		"webpage_url":   download.URL,
		"media_url":     result.MediaURL,
		"timestamp":     now.Unix(),
		"upload_date":   now.Format("20060102"),
		"tags":          []string{"tiktok"},
		"extractor":     d.extractor.Strategy().Name(),
		"extractor_key": "TikTok",
		"url":           download.URL,
		"platform":      string(domain.PlatformTikTok),
		"files":         []string{result.Path},
		"filesize":      result.Bytes,
		"filesize_text": humanize.IBytes(uint64(result.Bytes)),
		"ext":           "mp4",
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	download.Metadata = string(data)
	return nil
}
