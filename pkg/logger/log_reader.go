package logger

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"time"
)

// LogEntry represents a parsed log entry
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Category  string                 `json:"category"`
	Caller    string                 `json:"caller,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// reservedKeys are encoder keys lifted out of a line into LogEntry fields.
var reservedKeys = map[string]bool{
	"ts": true, "timestamp": true, "level": true, "msg": true,
	"message": true, "caller": true, "category": true,
}

// ParseLogLine turns one file line into an entry. Non-JSON lines, such as the
// process log markers, become info entries carrying the raw text.
func ParseLogLine(category LogCategory, line string) LogEntry {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{
			Timestamp: time.Now().Format(time.RFC3339),
			Level:     "info",
			Message:   line,
			Category:  string(category),
		}
	}

	entry := LogEntry{
		Timestamp: firstString(raw, "ts", "timestamp"),
		Level:     firstString(raw, "level"),
		Message:   firstString(raw, "msg", "message"),
		Caller:    firstString(raw, "caller"),
		Category:  firstString(raw, "category"),
	}
	if entry.Category == "" {
		entry.Category = string(category)
	}
	for k, v := range raw {
		if reservedKeys[k] {
			continue
		}
		if entry.Fields == nil {
			entry.Fields = make(map[string]interface{})
		}
		entry.Fields[k] = v
	}
	return entry
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			return s
		}
	}
	return ""
}

// LogReader provides functionality to read and stream log files
type LogReader struct {
	logsDir      string
	pollInterval time.Duration
}

// NewLogReader creates a new log reader
func NewLogReader(logsDir string) *LogReader {
	return &LogReader{
		logsDir:      logsDir,
		pollInterval: 100 * time.Millisecond,
	}
}

// GetLogPath returns the path to a category log file for a specific date
func (lr *LogReader) GetLogPath(category LogCategory, date time.Time) string {
	return CategoryLogPath(lr.logsDir, category, date.Format("20060102"))
}

// GetTodayLogPath returns the path to today's log file for a category
func (lr *LogReader) GetTodayLogPath(category LogCategory) string {
	return lr.GetLogPath(category, time.Now())
}

// ReadLogs reads the last limit entries from a category log file. limit <= 0
// reads everything.
func (lr *LogReader) ReadLogs(category LogCategory, date time.Time, limit int) ([]LogEntry, error) {
	file, err := os.Open(lr.GetLogPath(category, date))
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil // Return empty slice if file doesn't exist
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// Get last N lines if limit is specified
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	entries := make([]LogEntry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, ParseLogLine(category, line))
	}
	return entries, nil
}

// ReadTodayLogs reads today's log entries for a category
func (lr *LogReader) ReadTodayLogs(category LogCategory, limit int) ([]LogEntry, error) {
	return lr.ReadLogs(category, time.Now(), limit)
}

// SearchLogs searches for log entries matching a query
func (lr *LogReader) SearchLogs(category LogCategory, date time.Time, query string, limit int) ([]LogEntry, error) {
	entries, err := lr.ReadLogs(category, date, 0) // Read all
	if err != nil {
		return nil, err
	}

	var filtered []LogEntry
	query = strings.ToLower(query)

	for _, entry := range entries {
		// Search in message, level, and caller
		if strings.Contains(strings.ToLower(entry.Message), query) ||
			strings.Contains(strings.ToLower(entry.Level), query) ||
			strings.Contains(strings.ToLower(entry.Caller), query) {
			filtered = append(filtered, entry)
		}
	}

	// Apply limit
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	return filtered, nil
}

// TailLogs sends entries appended to today's category file until ctx is done.
// A missing file is waited for.
func (lr *LogReader) TailLogs(ctx context.Context, category LogCategory, entries chan<- LogEntry) error {
	path := lr.GetTodayLogPath(category)

	var file *os.File
	for file == nil {
		f, err := os.Open(path)
		switch {
		case err == nil:
			file = f
			if _, err := file.Seek(0, io.SeekEnd); err != nil {
				file.Close()
				return err
			}
		case os.IsNotExist(err):
			if !lr.sleep(ctx) {
				return nil
			}
		default:
			return err
		}
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	var partial string
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if errors.Is(err, io.EOF) {
			// hold an unterminated line until the writer finishes it
			partial += line
			if !lr.sleep(ctx) {
				return nil
			}
			continue
		}

		line = strings.TrimSpace(partial + line)
		partial = ""
		if line == "" {
			continue
		}

		select {
		case entries <- ParseLogLine(category, line):
		case <-ctx.Done():
			return nil
		}
	}
}

func (lr *LogReader) sleep(ctx context.Context) bool {
	t := time.NewTimer(lr.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
