package infrastructure

import (
	"bytes"
	"io"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><script>{"playAddr":"https://cdn.example/v.mp4"}</script></html>`

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func brotliBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func TestDecodeBody(t *testing.T) {
	page := []byte(samplePage)

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"identity", "", page},
		{"explicit identity", "identity", page},
		{"gzip", "gzip", gzipBytes(t, page)},
		{"deflate", "deflate", zlibBytes(t, page)},
		{"brotli", "br", brotliBytes(t, page)},
		{"zstd", "zstd", zstdBytes(t, page)},
		{"stacked", "gzip, br", brotliBytes(t, gzipBytes(t, page))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, closeFn, err := decodeBody(tt.encoding, bytes.NewReader(tt.body))
			require.NoError(t, err)
			defer closeFn()

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, samplePage, string(got))
		})
	}
}

func TestDecodeBody_UnknownEncodingPassesThrough(t *testing.T) {
	r, closeFn, err := decodeBody("compress", bytes.NewReader([]byte("raw")))
	require.NoError(t, err)
	defer closeFn()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "raw", string(got))
}

func TestDecodeBody_CorruptGzip(t *testing.T) {
	_, _, err := decodeBody("gzip", bytes.NewReader([]byte("not gzip")))
	assert.Error(t, err)
}
