package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Queue        QueueConfig        `mapstructure:"queue"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	TikTok       TikTokConfig       `mapstructure:"tiktok"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration.
// All working directories are derived from BaseDir.
type DownloadConfig struct {
	BaseDir          string        `mapstructure:"base_dir"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	ConcurrentLimit  int           `mapstructure:"concurrent_limit"`
	AutoStartWorkers bool          `mapstructure:"auto_start_workers"`
}

// CompletedDir is where published media files land.
func (c DownloadConfig) CompletedDir() string { return filepath.Join(c.BaseDir, "completed") }

// CookiesDir holds cookie files referenced by HTTPConfig.CookieFile.
func (c DownloadConfig) CookiesDir() string { return filepath.Join(c.BaseDir, "cookies") }

// LogsDir holds categorised logs and per-day process logs.
func (c DownloadConfig) LogsDir() string { return filepath.Join(c.BaseDir, "logs") }

// ConfigDir holds the queue database.
func (c DownloadConfig) ConfigDir() string { return filepath.Join(c.BaseDir, "config") }

// DebugDir receives HTML snapshots of pages where extraction failed.
func (c DownloadConfig) DebugDir() string { return filepath.Join(c.BaseDir, "debug") }

// QueueConfig contains queue-related configuration
type QueueConfig struct {
	DatabasePath    string        `mapstructure:"database_path"`
	CheckInterval   time.Duration `mapstructure:"check_interval"`
	AutoExitOnEmpty bool          `mapstructure:"auto_exit_on_empty"`
	EmptyWaitTime   time.Duration `mapstructure:"empty_wait_time"`
}

// HTTPConfig is applied to both the page request and the media request.
type HTTPConfig struct {
	Headers    map[string]string `mapstructure:"headers"`
	Cookie     string            `mapstructure:"cookie"`
	CookieFile string            `mapstructure:"cookie_file"`
	ChunkSize  int               `mapstructure:"chunk_size"` // write buffer size for the temp file
	ProxyURL   string            `mapstructure:"proxy_url"`  // http, https or socks5
}

// TikTokConfig contains TikTok-specific configuration
type TikTokConfig struct {
	Strategy      string `mapstructure:"strategy"` // pattern, script, auto
	RequireCookie bool   `mapstructure:"require_cookie"`
	WriteMetadata bool   `mapstructure:"write_metadata"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultChunkSize is the temp-file write buffer size (2 MiB).
const DefaultChunkSize = 2 * 1024 * 1024

// DefaultHeaders returns the browser-like header table sent with every request.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
		"Accept":     "*/*",
		"Referer":    "https://www.tiktok.com/explore",
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Download: DownloadConfig{
			BaseDir:          "$HOME/Downloads/tiktok-download",
			MaxRetries:       3,
			RetryDelay:       30 * time.Second,
			ConcurrentLimit:  1,
			AutoStartWorkers: true,
		},
		Queue: QueueConfig{
			DatabasePath:    "$HOME/Downloads/tiktok-download/config/queue.db",
			CheckInterval:   10 * time.Second,
			AutoExitOnEmpty: false,
			EmptyWaitTime:   5 * time.Minute,
		},
		HTTP: HTTPConfig{
			Headers:    DefaultHeaders(),
			CookieFile: "$HOME/Downloads/tiktok-download/cookies/tiktok.com/default.cookie",
			ChunkSize:  DefaultChunkSize,
		},
		TikTok: TikTokConfig{
			Strategy:      "pattern",
			RequireCookie: false,
			WriteMetadata: true,
		},
		Notification: NotificationConfig{
			Enabled: true,
			Sound:   true,
			Method:  "osascript",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
