package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/tiktok-extract-go/internal/app"
	"github.com/yourusername/tiktok-extract-go/internal/domain"
	"github.com/yourusername/tiktok-extract-go/internal/infrastructure"
	"github.com/yourusername/tiktok-extract-go/pkg/logger"
)

// localFlags are the overrides shared by fetch and extract.
type localFlags struct {
	cookie     string
	cookieFile string
	headers    []string
	strategy   string
	proxy      string
	debugDir   string
	verbose    bool
}

var (
	fetchFlags   localFlags
	extractFlags localFlags
	fetchQuiet   bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <page-url> <output-path>",
	Short: "Extract the video from a TikTok page and save it to output-path",
	Long: `Fetch a TikTok page, find the direct video URL in it and stream the video
to output-path. Bytes are written to a .part file next to the destination
and renamed into place only after the whole body has been received.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d, log, err := newLocalDownloader(&fetchFlags)
		if err != nil {
			return err
		}
		defer log.Sync()

		progress := infrastructure.NewBarProgress(os.Stderr)
		if fetchQuiet {
			progress = infrastructure.NopProgress
		}

		result, err := d.Fetch(ctx, args[0], args[1], progress)
		if err != nil {
			if result != nil && result.Bytes > 0 {
				fmt.Fprintf(os.Stderr, "Partial data kept in %s (%s)\n",
					domain.PartPath(args[1]), humanize.IBytes(uint64(result.Bytes)))
			}
			return err
		}

		if !fetchQuiet {
			fmt.Fprintf(os.Stderr, "Saved %s (%s)\n", result.Path, humanize.IBytes(uint64(result.Bytes)))
		}
		fmt.Println(result.Path)
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <page-url>",
	Short: "Print the direct video URL found in a TikTok page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d, log, err := newLocalDownloader(&extractFlags)
		if err != nil {
			return err
		}
		defer log.Sync()

		mediaURL, err := d.Extract(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(mediaURL)
		return nil
	},
}

func init() {
	for _, c := range []struct {
		cmd   *cobra.Command
		flags *localFlags
	}{{fetchCmd, &fetchFlags}, {extractCmd, &extractFlags}} {
		f := c.cmd.Flags()
		f.StringVar(&c.flags.cookie, "cookie", "", "Cookie header value")
		f.StringVar(&c.flags.cookieFile, "cookie-file", "", "Netscape cookies.txt or raw cookie file")
		f.StringArrayVarP(&c.flags.headers, "header", "H", nil, "Request header as name=value (repeatable, empty value removes a default)")
		f.StringVar(&c.flags.strategy, "strategy", "", "Extraction strategy (pattern, script, auto)")
		f.StringVar(&c.flags.proxy, "proxy", "", "Proxy URL (http, https, socks5)")
		f.StringVar(&c.flags.debugDir, "debug-dir", ".", "Where pages without a video URL are saved")
		f.BoolVarP(&c.flags.verbose, "verbose", "v", false, "Log requests to stderr")
	}
	fetchCmd.Flags().BoolVarP(&fetchQuiet, "quiet", "q", false, "No progress bar or summary")
}

// newLocalDownloader loads config, applies flag overrides and builds a
// downloader that logs to stderr.
func newLocalDownloader(flags *localFlags) (*infrastructure.TikTokDownloader, *zap.Logger, error) {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := applyLocalFlags(config, flags); err != nil {
		return nil, nil, err
	}

	level := "warn"
	if flags.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "console", OutputPath: "stderr"})
	if err != nil {
		return nil, nil, err
	}

	dirs := app.DownloaderDirs(config)
	dirs.Debug = flags.debugDir

	d, err := app.NewTikTokDownloader(config, dirs, log)
	if err != nil {
		return nil, nil, err
	}
	return d, log, nil
}

// applyLocalFlags overlays command-line settings on config.
func applyLocalFlags(config *domain.Config, flags *localFlags) error {
	if flags.cookie != "" {
		config.HTTP.Cookie = flags.cookie
	}
	if flags.cookieFile != "" {
		config.HTTP.Cookie = ""
		config.HTTP.CookieFile = flags.cookieFile
	}
	if flags.strategy != "" {
		if _, err := infrastructure.NewStrategy(flags.strategy); err != nil {
			return err
		}
		config.TikTok.Strategy = flags.strategy
	}
	if flags.proxy != "" {
		config.HTTP.ProxyURL = flags.proxy
	}

	if len(flags.headers) == 0 {
		return nil
	}
	if config.HTTP.Headers == nil {
		config.HTTP.Headers = make(map[string]string)
	}
	for _, raw := range flags.headers {
		name, value, err := parseHeaderFlag(raw)
		if err != nil {
			return err
		}
		setHeader(config.HTTP.Headers, name, value)
	}
	return infrastructure.ValidateHeaders(config.HTTP.Headers)
}

// parseHeaderFlag splits "name=value". "Name: value" is accepted too.
func parseHeaderFlag(raw string) (string, string, error) {
	name, value, ok := strings.Cut(raw, "=")
	if colon := strings.Index(raw, ":"); colon > 0 && (!ok || colon < len(name)) {
		name, value, ok = raw[:colon], raw[colon+1:], true
	}
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", domain.NewHeaderError(raw, fmt.Errorf("expected name=value"))
	}
	return name, strings.TrimSpace(value), nil
}

// setHeader replaces any case variant of name. An empty value deletes it.
func setHeader(headers map[string]string, name, value string) {
	for k := range headers {
		if strings.EqualFold(k, name) {
			delete(headers, k)
		}
	}
	if value != "" {
		headers[name] = value
	}
}
