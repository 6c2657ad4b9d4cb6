package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New(Config{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)

	log.Info("hello", zap.String("k", "v"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hello"`)
	assert.Contains(t, string(data), `"k":"v"`)
}

func TestMultiLogger_WritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.Download().Info("Media published", zap.String("path", "/tmp/v.mp4"))
	ml.LogQueueEvent("Download queued", zap.String("id", "d1"))
	ml.LogError(CategoryDownload, "Download failed", zap.String("id", "d1"))
	ml.WebAccess().Info("HTTP request")
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)

	downloads, err := reader.ReadTodayLogs(CategoryDownload, 0)
	require.NoError(t, err)
	require.Len(t, downloads, 2)
	assert.Equal(t, "Media published", downloads[0].Message)
	assert.Equal(t, "info", downloads[0].Level)
	assert.Equal(t, "download", downloads[0].Category)
	assert.Equal(t, "/tmp/v.mp4", downloads[0].Fields["path"])
	assert.NotEmpty(t, downloads[0].Timestamp)

	errs, err := reader.ReadTodayLogs(CategoryError, 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "Download failed", errs[0].Message)

	web, err := reader.ReadTodayLogs(CategoryWebAccess, 0)
	require.NoError(t, err)
	assert.Len(t, web, 1)
}

func TestMultiLogger_RotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)
	defer ml.Close()

	tomorrow := time.Now().Add(24 * time.Hour)
	ml.now = func() time.Time { return tomorrow }
	ml.Queue().Info("after midnight")

	_, err = os.Stat(CategoryLogPath(dir, CategoryQueue, tomorrow.Format("20060102")))
	assert.NoError(t, err)
}

func TestNewMultiLogger_RequiresDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{})
	assert.Error(t, err)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("web")
	require.NoError(t, err)
	assert.Equal(t, CategoryWebAccess, c)

	_, err = ParseCategory("telemetry")
	assert.Error(t, err)
}

func TestReadLogs_LimitAndPlainLines(t *testing.T) {
	dir := t.TempDir()
	reader := NewLogReader(dir)
	content := "=== [2026-01-02 10:00:00] Download: d1 ===\n" +
		`{"level":"info","ts":"2026-01-02T10:00:01Z","msg":"one"}` + "\n" +
		`{"level":"warn","ts":"2026-01-02T10:00:02Z","msg":"two"}` + "\n"
	require.NoError(t, os.WriteFile(reader.GetTodayLogPath(CategoryDownload), []byte(content), 0644))

	all, err := reader.ReadTodayLogs(CategoryDownload, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "=== [2026-01-02 10:00:00] Download: d1 ===", all[0].Message)

	last, err := reader.ReadTodayLogs(CategoryDownload, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "two", last[0].Message)

	found, err := reader.SearchLogs(CategoryDownload, time.Now(), "WARN", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "two", found[0].Message)
}

func TestReadLogs_MissingFile(t *testing.T) {
	entries, err := NewLogReader(t.TempDir()).ReadTodayLogs(CategoryQueue, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTailLogs_StreamsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	reader := NewLogReader(dir)
	reader.pollInterval = 10 * time.Millisecond
	path := reader.GetTodayLogPath(CategoryQueue)
	require.NoError(t, os.WriteFile(path, []byte(`{"msg":"old"}`+"\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- reader.TailLogs(ctx, CategoryQueue, entries) }()

	// give the tailer time to seek past the existing content
	time.Sleep(50 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"msg":"new","level":"info"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case e := <-entries:
		assert.Equal(t, "new", e.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("no entry received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tail did not stop")
	}
}

func TestTailLogs_StopsWhileWaitingForFile(t *testing.T) {
	reader := NewLogReader(t.TempDir())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := reader.TailLogs(ctx, CategoryError, make(chan LogEntry))
	assert.NoError(t, err)
}

func TestLoggerAdapter_Single(t *testing.T) {
	l := zap.NewNop()
	a := NewSingleLoggerAdapter(l)

	assert.Same(t, l, a.Download())
	assert.Same(t, l, a.Queue())
	assert.Same(t, l, a.WebAccess())
	assert.Same(t, l, a.General())
	assert.Nil(t, a.Multi())
	assert.Same(t, l, a.For(CategoryError))
}
