package infrastructure

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

// readBufferSize is the most a single read takes from the response body.
const readBufferSize = 32 * 1024

// Streamer downloads a media URL into a part file and publishes it to the
// destination with a single rename.
type Streamer struct {
	client    *http.Client
	chunkSize int
	logger    *zap.Logger
}

// NewStreamer creates a streamer. chunkSize sizes the write buffer in front
// of the part file; values <= 0 use domain.DefaultChunkSize.
func NewStreamer(client *http.Client, chunkSize int, logger *zap.Logger) *Streamer {
	if chunkSize <= 0 {
		chunkSize = domain.DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Streamer{
		client:    client,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// ChunkSize returns the write buffer size in bytes.
func (s *Streamer) ChunkSize() int {
	return s.chunkSize
}

// Fetch streams mediaURL to dest and returns the number of bytes published.
// The part file is never removed on failure.
func (s *Streamer) Fetch(ctx context.Context, mediaURL string, headers map[string]string, cookie, dest string, progress ProgressFactory) (int64, error) {
	if progress == nil {
		progress = NopProgress
	}

	h, err := BuildHeader(headers, cookie)
	if err != nil {
		return 0, err
	}
	h.Set("Range", "bytes=0-")
	// Media bytes go to disk as served
	h.Del("Accept-Encoding")

	target := domain.NewTransferTarget(dest)
	if err := os.MkdirAll(target.Dir(), 0755); err != nil {
		return 0, domain.NewIOError("create directory", target.Dir(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return 0, domain.NewFetchError("build media request", mediaURL, err)
	}
	req.Header = h

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, domain.NewFetchError("get media", mediaURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, domain.NewFetchError("get media", mediaURL,
			fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode))
	}

	s.logger.Debug("Media response received",
		zap.String("url", mediaURL),
		zap.Int("status", resp.StatusCode),
		zap.Int64("content_length", resp.ContentLength),
		zap.String("part", target.Part))

	f, err := os.Create(target.Part)
	if err != nil {
		return 0, domain.NewIOError("create", target.Part, err)
	}

	reporter := progress(resp.ContentLength)
	written, err := s.stream(ctx, resp.Body, f, mediaURL, target.Part, reporter)
	reporter.Finish()
	if err != nil {
		return written, err
	}

	if err := os.Rename(target.Part, target.Dest); err != nil {
		return written, domain.NewIOError("rename", target.Part, err)
	}

	s.logger.Info("Media published",
		zap.String("path", target.Dest),
		zap.Int64("bytes", written))
	return written, nil
}

// stream copies body into f and closes f. Buffered bytes are flushed on every
// path so the part file holds everything received before a failure.
func (s *Streamer) stream(ctx context.Context, body io.Reader, f *os.File, mediaURL, partPath string, reporter ProgressReporter) (written int64, err error) {
	w := bufio.NewWriterSize(f, s.chunkSize)
	defer func() {
		if ferr := w.Flush(); ferr != nil && err == nil {
			err = domain.NewIOError("write", partPath, ferr)
		}
		if err == nil {
			if serr := f.Sync(); serr != nil {
				err = domain.NewIOError("sync", partPath, serr)
			}
		}
		if cerr := f.Close(); cerr != nil && err == nil {
			err = domain.NewIOError("close", partPath, cerr)
		}
	}()

	buf := make([]byte, readBufferSize)
	for {
		if cerr := ctx.Err(); cerr != nil {
			return written, domain.NewFetchError("read media", mediaURL, cerr)
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return written, domain.NewIOError("write", partPath, werr)
			}
			written += int64(n)
			reporter.Update(written)
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			if cerr := ctx.Err(); cerr != nil && !errors.Is(rerr, cerr) {
				rerr = fmt.Errorf("%w: %v", cerr, rerr)
			}
			return written, domain.NewFetchError("read media", mediaURL, rerr)
		}
	}
}
