package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
	"github.com/yourusername/tiktok-extract-go/internal/infrastructure"
)

const (
	// AppName names the per-user and system config directories.
	AppName = "tiktok-extract-go"
	// EnvPrefix prefixes environment overrides, e.g. TTEXTRACT_SERVER_PORT.
	EnvPrefix = "TTEXTRACT"
)

// ConfigSearchPaths lists the directories searched for config.yaml, in order.
func ConfigSearchPaths() []string {
	return []string{
		"./configs",
		filepath.Join(xdg.ConfigHome, AppName),
		filepath.Join("/etc", AppName),
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	// Start with default config
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	// If config path is provided, use it
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		for _, p := range ConfigSearchPaths() {
			v.AddConfigPath(p)
		}
	}

	// Defaults make every key visible to AutomaticEnv
	for key, value := range configValues(config) {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	// Header names arrive lowercased from viper; decode into a fresh map so
	// defaults and overrides share one spelling.
	config.HTTP.Headers = nil
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)
	pruneHeaders(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ConfigFileUsed reports which file LoadConfig would read, or "" when only
// defaults apply.
func ConfigFileUsed(configPath string) string {
	if configPath != "" {
		return configPath
	}
	for _, dir := range ConfigSearchPaths() {
		for _, ext := range []string{"yaml", "yml"} {
			p := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// configValues flattens config into viper keys.
func configValues(c *domain.Config) map[string]interface{} {
	headers := make(map[string]interface{}, len(c.HTTP.Headers))
	for k, v := range c.HTTP.Headers {
		headers[k] = v
	}
	return map[string]interface{}{
		"server.host":                 c.Server.Host,
		"server.port":                 c.Server.Port,
		"download.base_dir":           c.Download.BaseDir,
		"download.max_retries":        c.Download.MaxRetries,
		"download.retry_delay":        c.Download.RetryDelay.String(),
		"download.concurrent_limit":   c.Download.ConcurrentLimit,
		"download.auto_start_workers": c.Download.AutoStartWorkers,
		"queue.database_path":         c.Queue.DatabasePath,
		"queue.check_interval":        c.Queue.CheckInterval.String(),
		"queue.auto_exit_on_empty":    c.Queue.AutoExitOnEmpty,
		"queue.empty_wait_time":       c.Queue.EmptyWaitTime.String(),
		"http.headers":                headers,
		"http.cookie":                 c.HTTP.Cookie,
		"http.cookie_file":            c.HTTP.CookieFile,
		"http.chunk_size":             c.HTTP.ChunkSize,
		"http.proxy_url":              c.HTTP.ProxyURL,
		"tiktok.strategy":             c.TikTok.Strategy,
		"tiktok.require_cookie":       c.TikTok.RequireCookie,
		"tiktok.write_metadata":       c.TikTok.WriteMetadata,
		"notification.enabled":        c.Notification.Enabled,
		"notification.sound":          c.Notification.Sound,
		"notification.method":         c.Notification.Method,
		"logging.level":               c.Logging.Level,
		"logging.format":              c.Logging.Format,
		"logging.output_path":         c.Logging.OutputPath,
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Queue.DatabasePath = expandPath(config.Queue.DatabasePath)
	if config.Queue.DatabasePath == "" && config.Download.BaseDir != "" {
		config.Queue.DatabasePath = filepath.Join(config.Download.ConfigDir(), "queue.db")
	}

	if config.HTTP.CookieFile != "" {
		config.HTTP.CookieFile = expandPath(config.HTTP.CookieFile)
		if !filepath.IsAbs(config.HTTP.CookieFile) && config.Download.BaseDir != "" {
			config.HTTP.CookieFile = filepath.Join(config.Download.CookiesDir(), config.HTTP.CookieFile)
		}
	}

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	// Expand home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	// Replace $HOME even when the variable is unset
	if strings.Contains(path, "$HOME") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// pruneHeaders drops headers configured with an empty value, which is how a
// config file removes one of the defaults.
func pruneHeaders(config *domain.Config) {
	for k, v := range config.HTTP.Headers {
		if v == "" {
			delete(config.HTTP.Headers, k)
		}
	}
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.BaseDir == "" {
		return fmt.Errorf("download base directory not configured")
	}

	if config.Download.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if config.Download.ConcurrentLimit < 1 {
		return fmt.Errorf("concurrent limit must be at least 1")
	}

	if config.Queue.DatabasePath == "" {
		return fmt.Errorf("queue database path not configured")
	}

	if config.Queue.CheckInterval <= 0 {
		return fmt.Errorf("queue check interval must be positive")
	}

	if config.HTTP.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}

	if err := infrastructure.ValidateHeaders(config.HTTP.Headers); err != nil {
		return err
	}

	if config.HTTP.ProxyURL != "" {
		u, err := url.Parse(config.HTTP.ProxyURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid proxy url: %s", config.HTTP.ProxyURL)
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
		}
	}

	if _, err := infrastructure.NewStrategy(config.TikTok.Strategy); err != nil {
		return err
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configValues(config) {
		v.Set(key, value)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config file
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
