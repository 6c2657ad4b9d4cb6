package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

// Exit codes
const (
	exitOK       = 0
	exitGeneric  = 1
	exitHeader   = 2
	exitFetch    = 3
	exitNotFound = 4
	exitIO       = 5
)

var (
	serverURL   string
	noAutoStart bool
	configPath  string
	rootCmd     = &cobra.Command{
		Use:   "tt-extract",
		Short: "TikTok-Extract CLI - fetch TikTok videos directly or through the download queue",
		Long: `A command-line interface for extracting and downloading TikTok videos.

fetch and extract run locally without a server. The queue commands talk to
tt-extract-server and start it when it is not running.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(extractCmd)

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(logsCmd)
}

// exitCodeFor maps an error to the process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	switch domain.KindOf(err) {
	case domain.KindHeader:
		return exitHeader
	case domain.KindFetch:
		return exitFetch
	case domain.KindExtractionNotFound:
		return exitNotFound
	case domain.KindIO:
		return exitIO
	}
	return exitGeneric
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Interrupted")
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCodeFor(err))
}
