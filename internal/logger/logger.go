// Package logger is the structured-logging convenience layer over the shipper
// and any pluggable sinks. It exposes one canonical entry point,
// Logger.Log(level, message, fields), with thin adapters for the common call
// conventions (message-first, and context-first for trace correlation). No
// call through this package can fail or block the caller: a missing sink,
// shipper, or trace provider degrades to console-only behaviour.
package logger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/logrelay/logrelay/internal/shipper"
)

// Fields carries caller-supplied structured context for one log entry.
type Fields map[string]any

// WriteLogFunc is a pluggable "write structured entry" sink receiving one
// flattened key-value record per log call.
type WriteLogFunc func(entry map[string]any)

// AuditWriteFunc is a pluggable "write audit entry" sink.
type AuditWriteFunc func(action, actorID, sourceIP string, metadata map[string]any)

// TraceProvider supplies correlation fields from an ambient trace context.
// Implementations must treat an absent or invalid trace as "no fields", never
// as an error.
type TraceProvider interface {
	TraceFields(ctx context.Context) Fields
}

// NoopTraceProvider is the default TraceProvider: no correlation fields.
type NoopTraceProvider struct{}

func (NoopTraceProvider) TraceFields(context.Context) Fields { return nil }

// Logger fans one log call out to the console echo, the remote shipper, and an
// optional structured sink.
type Logger struct {
	ship       *shipper.Shipper
	writeLog   WriteLogFunc
	auditWrite AuditWriteFunc
	trace      TraceProvider
}

// Option configures a Logger.
type Option func(*Logger)

// WithShipper routes entries through the buffered remote pipeline. The
// shipper also provides the mandatory console echo.
func WithShipper(s *shipper.Shipper) Option {
	return func(l *Logger) { l.ship = s }
}

// WithWriteLog installs a pluggable structured-entry sink invoked with the
// flattened record of every log call.
func WithWriteLog(fn WriteLogFunc) Option {
	return func(l *Logger) { l.writeLog = fn }
}

// WithAuditWrite installs the pluggable audit sink invoked by Audit.
func WithAuditWrite(fn AuditWriteFunc) Option {
	return func(l *Logger) { l.auditWrite = fn }
}

// WithTraceProvider installs a trace correlation source used by the
// context-first adapters.
func WithTraceProvider(tp TraceProvider) Option {
	return func(l *Logger) { l.trace = tp }
}

// New builds a Logger. With no options it degrades to console-only output.
func New(opts ...Option) *Logger {
	l := &Logger{trace: NoopTraceProvider{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log is the canonical entry point: every adapter below funnels into it.
func (l *Logger) Log(level shipper.Level, message string, fields Fields) {
	labels := make(map[string]string, len(fields))
	for k, v := range fields {
		labels[k] = stringify(v)
	}

	if l.ship != nil {
		l.ship.Log(level, message, labels)
	} else {
		// No shipper configured: echo directly so the line is never lost.
		attrs := make([]any, 0, 2*len(labels))
		for k, v := range labels {
			attrs = append(attrs, slog.String(k, v))
		}
		slog.Default().Log(context.Background(), slogLevel(level), message, attrs...)
	}

	if l.writeLog != nil {
		entry := make(map[string]any, 2+len(fields))
		entry["level"] = string(level)
		entry["msg"] = message
		for k, v := range fields {
			entry[k] = v
		}
		l.writeLog(entry)
	}
}

// Audit records one privileged action through the configured audit sink and
// logs it as an info-level entry. Without a sink only the log entry happens;
// like every other call here it never fails.
func (l *Logger) Audit(action, actorID, sourceIP string, metadata map[string]any) {
	if l.auditWrite != nil {
		l.auditWrite(action, actorID, sourceIP, metadata)
	}
	l.Log(shipper.LevelInfo, "audit: "+action, Fields{
		"action":   action,
		"actor_id": actorID,
		"ip":       sourceIP,
	})
}

// Message-first adapters.

func (l *Logger) Debug(message string, fields Fields) { l.Log(shipper.LevelDebug, message, fields) }
func (l *Logger) Info(message string, fields Fields)  { l.Log(shipper.LevelInfo, message, fields) }
func (l *Logger) Warn(message string, fields Fields)  { l.Log(shipper.LevelWarn, message, fields) }
func (l *Logger) Error(message string, fields Fields) { l.Log(shipper.LevelError, message, fields) }

// Context-first adapters: same canonical path, plus trace correlation fields
// from the configured provider merged into the entry. Caller fields win over
// provider fields on key collision.

func (l *Logger) LogCtx(ctx context.Context, level shipper.Level, message string, fields Fields) {
	merged := l.trace.TraceFields(ctx)
	if len(merged) == 0 {
		l.Log(level, message, fields)
		return
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.Log(level, message, merged)
}

func (l *Logger) DebugCtx(ctx context.Context, message string, fields Fields) {
	l.LogCtx(ctx, shipper.LevelDebug, message, fields)
}

func (l *Logger) InfoCtx(ctx context.Context, message string, fields Fields) {
	l.LogCtx(ctx, shipper.LevelInfo, message, fields)
}

func (l *Logger) WarnCtx(ctx context.Context, message string, fields Fields) {
	l.LogCtx(ctx, shipper.LevelWarn, message, fields)
}

func (l *Logger) ErrorCtx(ctx context.Context, message string, fields Fields) {
	l.LogCtx(ctx, shipper.LevelError, message, fields)
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func slogLevel(level shipper.Level) slog.Level {
	switch level {
	case shipper.LevelDebug:
		return slog.LevelDebug
	case shipper.LevelWarn:
		return slog.LevelWarn
	case shipper.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
