package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryDownload  LogCategory = "download" // Transfer lifecycle and progress (JSON)
	CategoryQueue     LogCategory = "queue"    // Queue lifecycle events (JSON)
	CategoryError     LogCategory = "error"    // Application errors (JSON)
	CategoryWebAccess LogCategory = "web"      // HTTP access log (JSON)
)

// Categories lists every category in display order.
var Categories = []LogCategory{CategoryDownload, CategoryQueue, CategoryError, CategoryWebAccess}

// ParseCategory maps a category name to a LogCategory.
func ParseCategory(name string) (LogCategory, error) {
	for _, c := range Categories {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown log category: %s", name)
}

// MultiLogger provides categorized logging with one JSON file per category
// per day. Per-download process output goes to download-YYYYMMDD.log through
// the downloader, which shares the download category's file name.
type MultiLogger struct {
	loggers     map[LogCategory]*zap.Logger
	files       map[LogCategory]*os.File
	config      MultiLoggerConfig
	level       zapcore.Level
	mu          sync.RWMutex
	currentDate string // Track current date for log rotation
	now         func() time.Time
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// NewMultiLogger creates a new multi-output logger
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}

	// Ensure logs directory exists
	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	ml := &MultiLogger{
		config: config,
		level:  level,
		now:    time.Now,
	}
	if err := ml.open(ml.now().Format("20060102")); err != nil {
		return nil, err
	}
	return ml, nil
}

// open creates the loggers for date. Caller holds mu or has exclusive access.
func (ml *MultiLogger) open(date string) error {
	loggers := make(map[LogCategory]*zap.Logger, len(Categories))
	files := make(map[LogCategory]*os.File, len(Categories))

	for _, category := range Categories {
		level := ml.level
		if category == CategoryError {
			level = zapcore.ErrorLevel
		}
		logger, file, err := ml.createStructuredLogger(category, date, level)
		if err != nil {
			for _, f := range files {
				f.Close()
			}
			return fmt.Errorf("failed to create %s logger: %w", category, err)
		}
		loggers[category] = logger
		files[category] = file
	}

	ml.loggers = loggers
	ml.files = files
	ml.currentDate = date
	return nil
}

// createStructuredLogger creates a JSON-formatted logger for a category
func (ml *MultiLogger) createStructuredLogger(category LogCategory, date string, level zapcore.Level) (*zap.Logger, *os.File, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = "" // Don't include caller for cleaner logs

	encoder := zapcore.NewJSONEncoder(encoderConfig)

	logPath := CategoryLogPath(ml.config.LogsDir, category, date)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(file), level)
	return zap.New(core).With(zap.String("category", string(category))), file, nil
}

// CategoryLogPath returns <logsDir>/<category>-<date>.log.
func CategoryLogPath(logsDir string, category LogCategory, date string) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s-%s.log", category, date))
}

// GetLogsDir returns the logs directory path
func (ml *MultiLogger) GetLogsDir() string {
	return ml.config.LogsDir
}

// rotate reopens every category file when the day changes.
func (ml *MultiLogger) rotate() {
	date := ml.now().Format("20060102")

	ml.mu.RLock()
	current := ml.currentDate
	ml.mu.RUnlock()
	if date == current {
		return
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()
	if date == ml.currentDate {
		return
	}
	old := ml.files
	oldLoggers := ml.loggers
	if err := ml.open(date); err != nil {
		// keep writing to yesterday's files
		return
	}
	for c, f := range old {
		oldLoggers[c].Sync()
		f.Close()
	}
}

// GetLogger returns the structured logger for a specific category
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	ml.rotate()

	ml.mu.RLock()
	defer ml.mu.RUnlock()

	if logger, ok := ml.loggers[category]; ok {
		return logger
	}

	// Return error logger as fallback
	if logger, ok := ml.loggers[CategoryError]; ok {
		return logger
	}
	return zap.NewNop()
}

// Download returns the download logger (JSON format)
func (ml *MultiLogger) Download() *zap.Logger {
	return ml.GetLogger(CategoryDownload)
}

// Queue returns the queue logger (JSON format)
func (ml *MultiLogger) Queue() *zap.Logger {
	return ml.GetLogger(CategoryQueue)
}

// Error returns the error logger (JSON format)
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.GetLogger(CategoryError)
}

// WebAccess returns the HTTP access logger (JSON format)
func (ml *MultiLogger) WebAccess() *zap.Logger {
	return ml.GetLogger(CategoryWebAccess)
}

// LogAppError logs an application-level error (Go errors, panics)
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.Error().Error(msg, fields...)
}

// LogQueueEvent logs a queue lifecycle event with structured data
func (ml *MultiLogger) LogQueueEvent(event string, fields ...zap.Field) {
	ml.Queue().Info(event, fields...)
}

// LogError logs to the category and mirrors the entry to the error log.
func (ml *MultiLogger) LogError(category LogCategory, msg string, fields ...zap.Field) {
	if category != CategoryError {
		ml.GetLogger(category).Error(msg, fields...)
	}
	ml.Error().Error(msg, fields...)
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes and closes every category file
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for category, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
		if err := ml.files[category].Close(); err != nil {
			lastErr = err
		}
	}
	ml.loggers = map[LogCategory]*zap.Logger{}
	ml.files = map[LogCategory]*os.File{}
	return lastErr
}
