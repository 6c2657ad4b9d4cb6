package logger

import (
	"go.uber.org/zap"
)

// LoggerAdapter lets components ask for a category logger without caring
// whether the process writes categorised files or one stream.
type LoggerAdapter struct {
	multi   *MultiLogger
	general *zap.Logger
}

// NewLoggerAdapter creates a new logger adapter. general receives messages
// that belong to no category; nil falls back to the queue logger.
func NewLoggerAdapter(multiLogger *MultiLogger, general *zap.Logger) *LoggerAdapter {
	if multiLogger == nil && general == nil {
		general = zap.NewNop()
	}
	return &LoggerAdapter{multi: multiLogger, general: general}
}

// NewSingleLoggerAdapter sends every category to logger.
func NewSingleLoggerAdapter(logger *zap.Logger) *LoggerAdapter {
	return NewLoggerAdapter(nil, logger)
}

// For returns the logger of category.
func (la *LoggerAdapter) For(category LogCategory) *zap.Logger {
	if la.multi != nil {
		return la.multi.GetLogger(category)
	}
	return la.general
}

func (la *LoggerAdapter) WebAccess() *zap.Logger { return la.For(CategoryWebAccess) }
func (la *LoggerAdapter) Download() *zap.Logger  { return la.For(CategoryDownload) }
func (la *LoggerAdapter) Queue() *zap.Logger     { return la.For(CategoryQueue) }
func (la *LoggerAdapter) Error() *zap.Logger     { return la.For(CategoryError) }

// General returns the uncategorised logger.
func (la *LoggerAdapter) General() *zap.Logger {
	if la.general != nil {
		return la.general
	}
	return la.multi.Queue()
}

// LogError writes msg to category and to the error log. With a single
// stream it is written once, tagged with the category.
func (la *LoggerAdapter) LogError(category LogCategory, msg string, fields ...zap.Field) {
	if la.multi != nil {
		la.multi.LogError(category, msg, fields...)
		return
	}
	la.general.Error(msg, append(fields, zap.String("category", string(category)))...)
}

// Sync flushes every underlying logger.
func (la *LoggerAdapter) Sync() error {
	var err error
	if la.multi != nil {
		err = la.multi.Sync()
	}
	if la.general != nil {
		if gerr := la.general.Sync(); err == nil {
			err = gerr
		}
	}
	return err
}

// Multi returns the categorised logger, or nil in single-stream mode.
func (la *LoggerAdapter) Multi() *MultiLogger {
	return la.multi
}
