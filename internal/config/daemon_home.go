package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetDaemonHome returns the daemon home directory.
// Priority order:
//  1. TASKDAEMON_HOME environment variable (if set)
//  2. Repository root (detected by finding go.mod or a .taskdaemon-root marker)
//  3. Current working directory (fallback)
//
// The directory is created if it doesn't exist.
func GetDaemonHome() (string, error) {
	if home := os.Getenv("TASKDAEMON_HOME"); home != "" {
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create daemon home directory: %w", err)
		}
		return home, nil
	}

	repoRoot, err := findRepoRoot()
	if err == nil && repoRoot != "" {
		home := filepath.Join(repoRoot, ".taskdaemon")
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create daemon home directory: %w", err)
		}
		return home, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	home := filepath.Join(cwd, ".taskdaemon")
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create daemon home directory: %w", err)
	}
	return home, nil
}

// findRepoRoot finds the repository root by looking for a .taskdaemon-root
// marker file, or a go.mod declaring this module's path.
func findRepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	current := cwd
	for {
		markerPath := filepath.Join(current, ".taskdaemon-root")
		if _, err := os.Stat(markerPath); err == nil {
			return current, nil
		}

		goModPath := filepath.Join(current, "go.mod")
		if data, err := os.ReadFile(goModPath); err == nil {
			if strings.Contains(string(data), "github.com/akfldk1028/taskdaemon") {
				return current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", fmt.Errorf("repository root not found (looking for .taskdaemon-root or go.mod declaring github.com/akfldk1028/taskdaemon)")
}

// GetHistoryDBPath returns the absolute path to the SQLite historical run
// ledger (§1.3 Supplemented features), always <daemon home>/history/runs.db
// (see GetDaemonHome).
func GetHistoryDBPath() (string, error) {
	home, err := GetDaemonHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "history", "runs.db"), nil
}

// GetHistoryDir returns the historical-run-ledger directory, creating it if
// necessary.
func GetHistoryDir() (string, error) {
	home, err := GetDaemonHome()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, "history")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create history directory: %w", err)
	}
	return dir, nil
}
