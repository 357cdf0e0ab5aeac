package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLogger writes level-filtered, timestamped plain-text lines to a single
// file, rotating the previous run's file to path+".1" on open — the
// teacher's own per-run rotation, collapsed from a timestamped-filename
// directory down to one explicit path since --log-file names a file, not a
// log directory.
type FileLogger struct {
	file  *os.File
	level int
	mu    sync.Mutex
}

// NewFileLogger rotates any existing file at path aside, creates path's
// parent directory if needed, and opens a fresh append-only file logger.
func NewFileLogger(path, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("logger: create log directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".1"); err != nil {
			return nil, fmt.Errorf("logger: rotate previous log: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("logger: open %s: %w", path, err)
	}

	fl := &FileLogger{file: f, level: levelFromString(logLevel)}
	fmt.Fprintf(f, "=== run started at %s ===\n", time.Now().Format(time.RFC3339))
	return fl, nil
}

func (fl *FileLogger) logf(level int, label, format string, args ...interface{}) {
	if level < fl.level {
		return
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fmt.Fprintf(fl.file, "[%s] [%s] %s\n", time.Now().Format("15:04:05"), label, fmt.Sprintf(format, args...))
	fl.file.Sync()
}

func (fl *FileLogger) Tracef(format string, args ...interface{}) { fl.logf(levelTrace, "TRACE", format, args...) }
func (fl *FileLogger) Debugf(format string, args ...interface{}) { fl.logf(levelDebug, "DEBUG", format, args...) }
func (fl *FileLogger) Infof(format string, args ...interface{})  { fl.logf(levelInfo, "INFO", format, args...) }
func (fl *FileLogger) Warnf(format string, args ...interface{})  { fl.logf(levelWarn, "WARN", format, args...) }
func (fl *FileLogger) Errorf(format string, args ...interface{}) { fl.logf(levelError, "ERROR", format, args...) }

// LogError satisfies daemon.Logger's narrow surface.
func (fl *FileLogger) LogError(message string) {
	fl.logf(levelError, "ERROR", "%s", message)
}

// Close flushes and closes the underlying file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.file.Close()
}

// TeeLogger fans every call out to both a console and a file sink, used when
// --log-file is set alongside the always-on console output.
type TeeLogger struct {
	console *ConsoleLogger
	file    *FileLogger
}

// NewTeeLogger combines console and file into a single Logger.
func NewTeeLogger(console *ConsoleLogger, file *FileLogger) *TeeLogger {
	return &TeeLogger{console: console, file: file}
}

func (t *TeeLogger) Tracef(format string, args ...interface{}) {
	t.console.Tracef(format, args...)
	t.file.Tracef(format, args...)
}

func (t *TeeLogger) Debugf(format string, args ...interface{}) {
	t.console.Debugf(format, args...)
	t.file.Debugf(format, args...)
}

func (t *TeeLogger) Infof(format string, args ...interface{}) {
	t.console.Infof(format, args...)
	t.file.Infof(format, args...)
}

func (t *TeeLogger) Warnf(format string, args ...interface{}) {
	t.console.Warnf(format, args...)
	t.file.Warnf(format, args...)
}

func (t *TeeLogger) Errorf(format string, args ...interface{}) {
	t.console.Errorf(format, args...)
	t.file.Errorf(format, args...)
}

func (t *TeeLogger) LogError(message string) {
	t.console.LogError(message)
	t.file.LogError(message)
}

// Close closes the file sink; the console sink owns no resource to close.
func (t *TeeLogger) Close() error {
	return t.file.Close()
}
