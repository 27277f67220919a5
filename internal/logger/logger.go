// Package logger provides structured logging with file and console output.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// DefaultLogMaxSize is the default maximum size in megabytes before log rotation
	DefaultLogMaxSize = 2

	// DefaultLogMaxBackups is the default number of old log files to retain
	DefaultLogMaxBackups = 3

	// DefaultLogMaxAge is the default maximum number of days to retain old log files
	DefaultLogMaxAge = 28

	// LevelTrace is a custom log level below Debug, only logged to file.
	// Every window message is logged at this level.
	LevelTrace = slog.LevelDebug - 4

	// TaskKey is the attribute the console renders as a [task] prefix
	TaskKey = "task"

	appName = "winpilot"
)

// LoggerInterface defines the logging methods
type LoggerInterface interface {
	Trace(msg string, args ...any) // Only logs to file, never to console
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a logger that adds args to every record. The child
	// shares the parent's file.
	With(args ...any) LoggerInterface

	Close()
	GetLogPath() string
}

// Rotation controls how the log file is rolled over
type Rotation struct {
	MaxSize    int  // Megabytes before rotation (default: 2)
	MaxBackups int  // Old files to keep (default: 3)
	MaxAge     int  // Days to keep old files (default: 28)
	Compress   bool // Gzip rotated files
}

func (r Rotation) withDefaults() Rotation {
	if r.MaxSize <= 0 {
		r.MaxSize = DefaultLogMaxSize
	}

	if r.MaxBackups <= 0 {
		r.MaxBackups = DefaultLogMaxBackups
	}

	if r.MaxAge <= 0 {
		r.MaxAge = DefaultLogMaxAge
	}

	return r
}

// LoggerOptions configures the logger
type LoggerOptions struct {
	Verbose  bool
	LogDir   string // If empty, uses %LOCALAPPDATA%\winpilot
	Rotation Rotation
	Console  io.Writer // Console destination (default: os.Stdout)
}

// GetLogPath returns the path where logs will be written based on options
func GetLogPath(opts LoggerOptions) string {
	logDir := opts.LogDir
	if logDir == "" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local")
		}

		logDir = filepath.Join(localAppData, appName)
	}

	return filepath.Join(logDir, appName+".log")
}

// PrintLogFile copies the current log file to w, or stdout when w is nil
func PrintLogFile(w io.Writer, opts LoggerOptions) error {
	if w == nil {
		w = os.Stdout
	}

	logPath := GetLogPath(opts)

	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}

	return nil
}

// Logger writes every record to a rotating file and to the console
type Logger struct {
	file    *slog.Logger
	console *slog.Logger
	closer  io.Closer
	logPath string
}

// NewLogger creates the log directory and opens the rotating file
func NewLogger(opts LoggerOptions) (*Logger, error) {
	logPath := GetLogPath(opts)

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}

	rot := opts.Rotation.withDefaults()
	rotating := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    rot.MaxSize,
		MaxBackups: rot.MaxBackups,
		MaxAge:     rot.MaxAge,
		Compress:   rot.Compress,
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	return &Logger{
		file:    slog.New(newFileHandler(rotating)),
		console: slog.New(NewConsoleHandler(console, opts.Verbose)),
		closer:  rotating,
		logPath: logPath,
	}, nil
}

// newFileHandler keeps every level, Trace included, and names it TRACE
func newFileHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: LevelTrace,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key != slog.LevelKey {
				return a
			}

			if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
				a.Value = slog.StringValue("TRACE")
			}

			return a
		},
	})
}

// Close closes the shared log file
func (l *Logger) Close() {
	if l.closer == nil {
		return
	}

	if err := l.closer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to close log file: %v\n", err)
	}
}

// GetLogPath returns the path to the current log file
func (l *Logger) GetLogPath() string {
	return l.logPath
}

// With scopes both outputs, typically to one task
func (l *Logger) With(args ...any) LoggerInterface {
	return &Logger{
		file:    l.file.With(args...),
		console: l.console.With(args...),
		closer:  l.closer,
		logPath: l.logPath,
	}
}

// Trace logs a trace message (file only, never to console)
func (l *Logger) Trace(msg string, args ...any) {
	l.file.Log(context.Background(), LevelTrace, msg, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	l.file.Debug(msg, args...)
	l.console.Debug(msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...any) {
	l.file.Info(msg, args...)
	l.console.Info(msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...any) {
	l.file.Warn(msg, args...)
	l.console.Warn(msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.file.Error(msg, args...)
	l.console.Error(msg, args...)
}

// ConsoleHandler prints one colored line per record. A task attribute
// becomes a [task] prefix so interleaved output from concurrent tasks stays
// readable.
type ConsoleHandler struct {
	mu      *sync.Mutex
	writer  io.Writer
	verbose bool
	task    string
	attrs   []slog.Attr
}

// NewConsoleHandler creates a console handler writing to w
func NewConsoleHandler(w io.Writer, verbose bool) *ConsoleHandler {
	return &ConsoleHandler{mu: &sync.Mutex{}, writer: w, verbose: verbose}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	if level <= LevelTrace {
		return false
	}

	if !h.verbose && level == slog.LevelDebug {
		return false
	}

	return true
}

func levelStyle(level slog.Level) (string, *color.Color) {
	switch {
	case level >= slog.LevelError:
		return "ERROR: ", color.New(color.FgRed)
	case level >= slog.LevelWarn:
		return "WARNING: ", color.New(color.FgYellow)
	case level < slog.LevelInfo:
		return "VERBOSE: ", color.New(color.FgCyan)
	}

	return "", nil
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	task := h.task
	fields := make([]string, 0, len(h.attrs)+r.NumAttrs())

	for _, a := range h.attrs {
		fields = append(fields, fmt.Sprintf("%s=%v", a.Key, a.Value))
	}

	r.Attrs(func(a slog.Attr) bool {
		if a.Key == TaskKey && task == "" {
			task = a.Value.String()
			return true
		}

		fields = append(fields, fmt.Sprintf("%s=%v", a.Key, a.Value))
		return true
	})

	var line strings.Builder
	prefix, style := levelStyle(r.Level)
	line.WriteString(prefix)

	if task != "" {
		fmt.Fprintf(&line, "[%s] ", task)
	}

	line.WriteString(r.Message)

	if len(fields) > 0 {
		line.WriteByte(' ')
		line.WriteString(strings.Join(fields, " "))
	}

	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	// Console write errors are ignored
	if style != nil {
		_, _ = style.Fprint(h.writer, line.String())
		return nil
	}

	_, _ = io.WriteString(h.writer, line.String())
	return nil
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	child := *h
	child.attrs = append([]slog.Attr(nil), h.attrs...)

	for _, a := range attrs {
		if a.Key == TaskKey {
			child.task = a.Value.String()
			continue
		}

		child.attrs = append(child.attrs, a)
	}

	return &child
}

func (h *ConsoleHandler) WithGroup(_ string) slog.Handler {
	return h
}

// NoOpLogger is a logger that does nothing - useful for tests
type NoOpLogger struct{}

func (n *NoOpLogger) Trace(msg string, args ...any)    {}
func (n *NoOpLogger) Debug(msg string, args ...any)    {}
func (n *NoOpLogger) Info(msg string, args ...any)     {}
func (n *NoOpLogger) Warn(msg string, args ...any)     {}
func (n *NoOpLogger) Error(msg string, args ...any)    {}
func (n *NoOpLogger) With(args ...any) LoggerInterface { return n }
func (n *NoOpLogger) Close()                           {}
func (n *NoOpLogger) GetLogPath() string               { return "" }

// NewNoOpLogger creates a new no-op logger for testing
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}
