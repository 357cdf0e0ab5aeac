// Package logger provides the daemon's console logging implementation:
// level-filtered, timestamped, and colorized when writing to a terminal.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const (
	levelTrace int = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
)

// ConsoleLogger satisfies daemon.Logger (and friends) with a level-filtered,
// mutex-guarded writer. Color is auto-detected from the writer's TTY-ness.
type ConsoleLogger struct {
	writer   io.Writer
	level    int
	mu       sync.Mutex
	useColor bool
}

// NewConsoleLogger returns a ConsoleLogger writing to w at logLevel
// (trace/debug/info/warn/error, case-insensitive; defaults to info).
func NewConsoleLogger(w io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:   w,
		level:    levelFromString(logLevel),
		useColor: isTerminal(w),
	}
}

func isTerminal(w io.Writer) bool {
	if w == os.Stdout {
		return isatty.IsTerminal(os.Stdout.Fd())
	}
	if w == os.Stderr {
		return isatty.IsTerminal(os.Stderr.Fd())
	}
	return false
}

func levelFromString(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) logf(level int, label, format string, args ...interface{}) {
	if cl.writer == nil || level < cl.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("15:04:05")

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.useColor {
		fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, colorLabel(level, label), msg)
		return
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, label, msg)
}

func colorLabel(level int, label string) string {
	var c *color.Color
	switch level {
	case levelTrace:
		c = color.New(color.FgHiBlack)
	case levelDebug:
		c = color.New(color.FgCyan)
	case levelInfo:
		c = color.New(color.FgBlue)
	case levelWarn:
		c = color.New(color.FgYellow)
	case levelError:
		c = color.New(color.FgRed)
	default:
		return label
	}
	return c.Sprint(label)
}

func (cl *ConsoleLogger) Tracef(format string, args ...interface{}) { cl.logf(levelTrace, "TRACE", format, args...) }
func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) { cl.logf(levelDebug, "DEBUG", format, args...) }
func (cl *ConsoleLogger) Infof(format string, args ...interface{})  { cl.logf(levelInfo, "INFO", format, args...) }
func (cl *ConsoleLogger) Warnf(format string, args ...interface{})  { cl.logf(levelWarn, "WARN", format, args...) }
func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) { cl.logf(levelError, "ERROR", format, args...) }

// LogError satisfies daemon.Logger's plain-message error sink.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logf(levelError, "ERROR", "%s", message)
}
