// Package logger provides a context-aware structured logger.
package logger

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Level controls the minimum severity that gets emitted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// TraceIDFn extracts a trace id from the context for log correlation.
type TraceIDFn func(ctx context.Context) string

// LoggerInterface is the logging contract injected into services.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
}

// Logger implements LoggerInterface on top of slog with JSON output.
type Logger struct {
	handler   *slog.Logger
	traceIDFn TraceIDFn
}

// New creates a Logger writing JSON records to w at the given level.
// service is attached to every record. traceIDFn may be nil, in which
// case the id is taken from the active OTEL span when one exists.
func New(w io.Writer, level Level, service string, traceIDFn TraceIDFn) *Logger {
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel})
	return &Logger{
		handler:   slog.New(h).With("service", service),
		traceIDFn: traceIDFn,
	}
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if traceID := l.traceID(ctx); traceID != "" {
		args = append(args, "trace_id", traceID)
	}
	l.handler.Log(ctx, level, msg, args...)
}

func (l *Logger) traceID(ctx context.Context) string {
	if l.traceIDFn != nil {
		return l.traceIDFn(ctx)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}
