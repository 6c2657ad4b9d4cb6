package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/tiktok-extract-go/api"
	"github.com/yourusername/tiktok-extract-go/api/handlers"
	"github.com/yourusername/tiktok-extract-go/internal/app"
	"github.com/yourusername/tiktok-extract-go/internal/domain"
	"github.com/yourusername/tiktok-extract-go/internal/infrastructure"
	"github.com/yourusername/tiktok-extract-go/pkg/logger"
)

var (
	serverMode = flag.Bool("server-mode", false, "Internal flag: run in server mode (called by daemon)")
	foreground = flag.Bool("foreground", false, "Run in the foreground instead of detaching")
	configPath = flag.String("config", "", "Path to config.yaml (default: search ./configs, XDG config home, /etc)")
)

func main() {
	flag.Parse()

	// If not in server mode, run as daemon
	if !*serverMode && !*foreground {
		startAsDaemon()
		return
	}

	// Run as server (called by daemon)
	if err := runServer(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// startAsDaemon re-executes the binary in server mode, detached from the
// terminal, and exits
func startAsDaemon() {
	// Get the executable path
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	args := []string{"-server-mode"}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}

	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	detach(cmd)

	// Redirect output to /dev/null
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	// Start the child process
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
	os.Exit(0)
}

func runServer() error {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := app.CreateDirectories(config); err != nil {
		return err
	}

	// Categorised JSON files: download, queue, error, web
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer multiLog.Close()

	general, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logAdapter := logger.NewLoggerAdapter(multiLog, general)
	defer logAdapter.Sync()
	log := logAdapter.General()

	log.Info("Starting TikTok-Extract server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("config", app.ConfigFileUsed(*configPath)),
		zap.String("strategy", config.TikTok.Strategy),
		zap.Int("concurrent_limit", config.Download.ConcurrentLimit))

	if parts, err := app.LeftoverPartFiles(config.Download.CompletedDir()); err == nil && len(parts) > 0 {
		log.Warn("Partial downloads left by a previous run", zap.Strings("files", parts))
	}

	// Initialize repository
	repo, err := infrastructure.NewSQLiteDownloadRepository(config.Queue.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()

	// Initialize notification service
	notifier := infrastructure.NewNotificationService(&config.Notification, log)

	tiktok, err := app.NewTikTokDownloader(config, app.DownloaderDirs(config), multiLog.Download())
	if err != nil {
		return err
	}

	downloaders := map[domain.Platform]domain.Downloader{
		domain.PlatformTikTok: tiktok,
	}

	downloadMgr := app.NewDownloadManager(repo, downloaders, notifier, &config.Download, multiLog.Download())
	queueMgr := app.NewQueueManager(repo, downloadMgr, notifier, &config.Queue, multiLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Download.AutoStartWorkers {
		if err := queueMgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start queue manager: %w", err)
		}
	}

	router := api.SetupRouter(queueMgr, downloadMgr, tiktok, logAdapter, multiLog.GetLogsDir())

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal OR auto-exit from queue manager
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Received shutdown signal")
	case <-queueMgr.WaitForExit():
		log.Info("Queue manager triggered auto-exit (all downloads complete)")
	case err := <-serveErr:
		log.Error("HTTP server failed", zap.Error(err))
		queueMgr.Stop()
		return err
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if queueMgr.IsRunning() {
		if err := queueMgr.Stop(); err != nil {
			log.Error("Error stopping queue manager", zap.Error(err))
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}
