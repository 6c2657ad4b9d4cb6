package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yourusername/tiktok-extract-go/internal/domain"
)

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Add a TikTok URL to the download queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		priority, _ := cmd.Flags().GetInt("priority")

		var download domain.Download
		payload := map[string]interface{}{"url": args[0], "priority": priority}
		if err := newAPIClient(serverURL).post("/api/v1/downloads", payload, &download); err != nil {
			return err
		}

		fmt.Printf("Download added successfully!\n")
		fmt.Printf("ID: %s\n", download.ID)
		fmt.Printf("Status: %s\n", download.Status)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		status, _ := cmd.Flags().GetString("status")

		query := url.Values{}
		if status != "" {
			query.Set("status", status)
		}

		var downloads []domain.Download
		if err := newAPIClient(serverURL).get("/api/v1/downloads", query, &downloads); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tURL\tSTATUS\tSIZE\tCREATED")
		for _, d := range downloads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				truncate(d.ID, 8),
				truncate(d.URL, 48),
				d.Status,
				sizeOf(d),
				humanize.Time(d.CreatedAt))
		}
		return w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		var stats domain.DownloadStats
		if err := newAPIClient(serverURL).get("/api/v1/downloads/stats", nil, &stats); err != nil {
			return err
		}

		fmt.Println("Download Statistics:")
		fmt.Printf("  Total:      %d\n", stats.Total)
		fmt.Printf("  Queued:     %d\n", stats.Queued)
		fmt.Printf("  Processing: %d\n", stats.Processing)
		fmt.Printf("  Completed:  %d\n", stats.Completed)
		fmt.Printf("  Failed:     %d\n", stats.Failed)
		fmt.Printf("  Cancelled:  %d\n", stats.Cancelled)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get download details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		var d domain.Download
		if err := newAPIClient(serverURL).get("/api/v1/downloads/"+args[0], nil, &d); err != nil {
			return err
		}

		fmt.Printf("Download Details:\n")
		fmt.Printf("  ID:       %s\n", d.ID)
		fmt.Printf("  URL:      %s\n", d.URL)
		fmt.Printf("  Status:   %s\n", d.Status)
		fmt.Printf("  Priority: %d\n", d.Priority)
		fmt.Printf("  Retries:  %d\n", d.RetryCount)
		fmt.Printf("  Created:  %s\n", d.CreatedAt.Format(time.RFC3339))
		if d.MediaURL != "" {
			fmt.Printf("  Media:    %s\n", d.MediaURL)
		}
		if d.FilePath != "" {
			fmt.Printf("  File:     %s (%s)\n", d.FilePath, sizeOf(d))
		}
		if d.ErrorMessage != "" {
			fmt.Printf("  Error:    %s\n", d.ErrorMessage)
		}
		return nil
	},
}

// progressResponse mirrors GET /api/v1/downloads/:id/progress.
type progressResponse struct {
	ID      string                `json:"id"`
	Status  domain.DownloadStatus `json:"status"`
	Active  bool                  `json:"active"`
	Written int64                 `json:"written"`
	Total   int64                 `json:"total"`
	Percent float64               `json:"percent"`
}

var progressCmd = &cobra.Command{
	Use:   "progress [id]",
	Short: "Show transfer progress of a download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		var p progressResponse
		if err := newAPIClient(serverURL).get("/api/v1/downloads/"+args[0]+"/progress", nil, &p); err != nil {
			return err
		}

		fmt.Printf("%s: %s\n", p.ID, p.Status)
		if p.Total >= 0 {
			fmt.Printf("  %s / %s (%.1f%%)\n",
				humanize.IBytes(uint64(p.Written)), humanize.IBytes(uint64(p.Total)), p.Percent)
		} else if p.Active {
			fmt.Printf("  %s (size unknown)\n", humanize.IBytes(uint64(p.Written)))
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		if err := newAPIClient(serverURL).post("/api/v1/downloads/"+args[0]+"/cancel", nil, nil); err != nil {
			return err
		}
		fmt.Println("Download cancelled successfully")
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Retry a failed or cancelled download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		if err := newAPIClient(serverURL).post("/api/v1/downloads/"+args[0]+"/retry", nil, nil); err != nil {
			return err
		}
		fmt.Println("Download queued for retry")
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a download record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		if err := newAPIClient(serverURL).delete("/api/v1/downloads/"+args[0], nil); err != nil {
			return err
		}
		fmt.Println("Download deleted")
		return nil
	},
}

// logEntry is one line of a category log as returned by the server.
type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "Show server logs (download, queue, error, web)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")
		search, _ := cmd.Flags().GetString("search")
		date, _ := cmd.Flags().GetString("date")

		category := "download"
		if len(args) == 1 {
			category = args[0]
		}

		query := url.Values{}
		query.Set("limit", strconv.Itoa(limit))
		if date != "" {
			query.Set("date", date)
		}
		path := "/api/v1/logs/" + url.PathEscape(category)
		if search != "" {
			path += "/search"
			query.Set("q", search)
		}

		var result struct {
			Entries []logEntry `json:"entries"`
		}
		if err := newAPIClient(serverURL).get(path, query, &result); err != nil {
			return err
		}

		for _, e := range result.Entries {
			fmt.Printf("%s %-5s %s", e.Timestamp, e.Level, e.Message)
			for k, v := range e.Fields {
				fmt.Printf(" %s=%v", k, v)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	addCmd.Flags().IntP("priority", "p", 0, "Queue priority (higher runs first)")
	listCmd.Flags().StringP("status", "s", "", "Filter by status")
	logsCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries")
	logsCmd.Flags().StringP("search", "q", "", "Only entries containing this text")
	logsCmd.Flags().String("date", "", "Log date as YYYY-MM-DD (default today)")
}

func sizeOf(d domain.Download) string {
	if d.BytesWritten <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(d.BytesWritten))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
