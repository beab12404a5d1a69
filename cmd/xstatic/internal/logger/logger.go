package logger

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
)

// Init initializes the global logger.
// debug enables debug level logging and source locations.
// Kubernetes client logging (klog) is routed to the same handler.
func Init(debug bool) {
	once.Do(func() {
		setup(os.Stdout, debug)
	})
}

// InitWithWriter replaces the global logger, writing to w.
// Intended for tests that need to inspect log output.
func InitWithWriter(w io.Writer, debug bool) {
	once.Do(func() {})
	setup(w, debug)
}

func setup(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source file information if in debug mode
		AddSource: debug,
	}

	handler := slog.NewTextHandler(w, opts)
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
	klog.SetLogger(logr.FromSlogHandler(handler.WithAttrs([]slog.Attr{slog.String("component", "client-go")})))
}

func get() *slog.Logger {
	if defaultLogger == nil {
		Init(os.Getenv("DEBUG") == "true")
	}
	return defaultLogger
}

// Debug logs at Debug level.
func Debug(msg string, args ...any) {
	get().Debug(msg, args...)
}

// Info logs at Info level.
func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

// Warn logs at Warn level.
func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}

// Error logs at Error level.
func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

// Fatal logs at Error level and then exits.
func Fatal(msg string, args ...any) {
	get().Error(msg, args...)
	os.Exit(1)
}

// With returns a new logger with the given attributes.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}

// StdLogger returns a *log.Logger that writes through the global logger
// at the given level. net/http reports TLS handshake and accept errors
// through it.
func StdLogger(level slog.Level) *log.Logger {
	return slog.NewLogLogger(get().Handler(), level)
}

// DebugContext logs at Debug level with context.
func DebugContext(ctx context.Context, msg string, args ...any) {
	get().DebugContext(ctx, msg, args...)
}

// InfoContext logs at Info level with context.
func InfoContext(ctx context.Context, msg string, args ...any) {
	get().InfoContext(ctx, msg, args...)
}

// WarnContext logs at Warn level with context.
func WarnContext(ctx context.Context, msg string, args ...any) {
	get().WarnContext(ctx, msg, args...)
}
