package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

const (
	serverBinary       = "tt-extract-server"
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
)

var errServerNotFound = errors.New(serverBinary + " binary not found")

// isServerRunning reports whether /health answers 200 within a second.
func isServerRunning() bool {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(strings.TrimRight(serverURL, "/") + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// serverCandidates lists where the server binary may live, most specific
// first: next to this executable, then $PATH, then the usual install dirs.
func serverCandidates() []string {
	name := serverBinary
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	var paths []string
	if execPath, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(execPath), name))
	}
	if p, err := exec.LookPath(name); err == nil {
		paths = append(paths, p)
	}
	paths = append(paths, filepath.Join(xdg.BinHome, name))
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, "go", "bin", name))
	}
	if runtime.GOOS != "windows" {
		paths = append(paths, "/usr/local/bin/"+name, "/usr/bin/"+name)
	}
	return paths
}

// findServerBinary returns the first candidate that exists.
func findServerBinary() (string, error) {
	for _, p := range serverCandidates() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", errServerNotFound
}

// startServerBackground launches the server detached from this terminal.
func startServerBackground() error {
	serverPath, err := findServerBinary()
	if err != nil {
		return err
	}

	// -foreground keeps the server from forking again; setSysProcAttr detaches it
	args := []string{"-foreground"}
	if configPath != "" {
		args = append(args, "-config", configPath)
	}
	cmd := exec.Command(serverPath, args...)
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	// Reap the child if it exits while we are still around
	go cmd.Wait()
	return nil
}

// waitForServerReady polls /health until it answers or the timeout passes.
func waitForServerReady() error {
	ticker := time.NewTicker(serverPollInterval)
	defer ticker.Stop()
	deadline := time.After(serverStartTimeout)

	for {
		if isServerRunning() {
			return nil
		}
		select {
		case <-ticker.C:
		case <-deadline:
			return fmt.Errorf("server did not start within %v", serverStartTimeout)
		}
	}
}

// ensureServerRunning starts the server unless it already answers.
func ensureServerRunning() error {
	if isServerRunning() {
		return nil
	}

	fmt.Fprintln(os.Stderr, "Server not running, starting...")
	if err := startServerBackground(); err != nil {
		return err
	}
	if err := waitForServerReady(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Server started successfully")
	return nil
}
