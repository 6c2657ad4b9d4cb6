package infrastructure

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// readPageBody reads a whole response body, undoing any Content-Encoding the
// transport left in place. net/http only decompresses transparently when it
// set Accept-Encoding itself, which is not the case once the caller's header
// table includes one.
func readPageBody(resp *http.Response) ([]byte, error) {
	r, closeFn, err := decodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return io.ReadAll(r)
}

// decodeBody wraps body in a decoder for encoding. Codings are applied in
// listed order, so they are undone in reverse.
func decodeBody(encoding string, body io.Reader) (io.Reader, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	codings := strings.Split(encoding, ",")
	r := body
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.ToLower(strings.TrimSpace(codings[i]))
		switch coding {
		case "", "identity":
		case "gzip", "x-gzip":
			zr, err := gzip.NewReader(r)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("gzip body: %w", err)
			}
			closers = append(closers, func() { zr.Close() })
			r = zr
		case "deflate":
			zr, err := zlib.NewReader(r)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("deflate body: %w", err)
			}
			closers = append(closers, func() { zr.Close() })
			r = zr
		case "br":
			r = brotli.NewReader(r)
		case "zstd":
			zr, err := zstd.NewReader(r)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("zstd body: %w", err)
			}
			closers = append(closers, zr.Close)
			r = zr
		default:
			// unknown coding: hand back what we have
			return r, closeAll, nil
		}
	}
	return r, closeAll, nil
}
