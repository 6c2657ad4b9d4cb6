package infrastructure

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

// debugFilePrefix names HTML snapshots of pages where extraction failed.
const debugFilePrefix = "tiktok_debug_"

// slashUnescaper undoes the \u002F escaping the page applies to URLs.
var slashUnescaper = strings.NewReplacer(`\u002F`, "/", `\u002f`, "/")

// Extractor fetches a video page and pulls the direct media URL out of it.
type Extractor struct {
	client   *http.Client
	strategy Strategy
	debugDir string
	logger   *zap.Logger
}

// NewExtractor creates an extractor. debugDir receives HTML snapshots when no
// media URL is found ("" means the working directory).
func NewExtractor(client *http.Client, strategy Strategy, debugDir string, logger *zap.Logger) *Extractor {
	if strategy == nil {
		strategy = NewPatternStrategy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		client:   client,
		strategy: strategy,
		debugDir: debugDir,
		logger:   logger,
	}
}

// Strategy returns the configured extraction strategy.
func (e *Extractor) Strategy() Strategy {
	return e.strategy
}

// Extract fetches pageURL with headers and cookie applied and returns the
// first media URL the strategy finds. When none is found the page is saved
// to the debug directory and an ExtractionNotFound error is returned.
func (e *Extractor) Extract(ctx context.Context, pageURL string, headers map[string]string, cookie string) (string, error) {
	h, err := BuildHeader(headers, cookie)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", domain.NewFetchError("build page request", pageURL, err)
	}
	req.Header = h

	resp, err := e.client.Do(req)
	if err != nil {
		return "", domain.NewFetchError("get page", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.logger.Warn("Page returned non-success status, scanning anyway",
			zap.String("url", pageURL),
			zap.Int("status", resp.StatusCode))
	}

	body, err := readPageBody(resp)
	if err != nil {
		return "", domain.NewFetchError("read page", pageURL, err)
	}
	html := string(body)

	if raw, ok := e.strategy.Find(html); ok {
		mediaURL := slashUnescaper.Replace(raw)
		e.logger.Debug("Media URL extracted",
			zap.String("url", pageURL),
			zap.String("final_url", resp.Request.URL.String()),
			zap.String("strategy", e.strategy.Name()))
		return mediaURL, nil
	}

	debugPath := e.debugPath(pageURL)
	if err := e.writeDebug(debugPath, body); err != nil {
		e.logger.Warn("Failed to save page snapshot",
			zap.String("path", debugPath),
			zap.Error(err))
		debugPath = ""
	} else {
		e.logger.Info("Media URL not found, page saved",
			zap.String("url", pageURL),
			zap.String("debug_file", debugPath))
	}
	return "", domain.NewExtractionNotFound(pageURL, debugPath)
}

func (e *Extractor) debugPath(pageURL string) string {
	return filepath.Join(e.debugDir, DebugFileName(pageURL))
}

func (e *Extractor) writeDebug(path string, body []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, body, 0644)
}

// DebugFileName names the snapshot after the last path segment of pageURL,
// or "debug" when the URL has none.
func DebugFileName(pageURL string) string {
	segment := ""
	if u, err := url.Parse(pageURL); err == nil {
		segment = lastSegment(u.Path)
	} else {
		segment = lastSegment(pageURL)
	}
	segment = sanitizeSegment(segment)
	if segment == "" {
		segment = "debug"
	}
	return debugFilePrefix + segment + ".html"
}

func lastSegment(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// sanitizeSegment keeps a segment usable as a file name on every platform.
func sanitizeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
	if s == "." || s == ".." {
		return ""
	}
	return s
}
