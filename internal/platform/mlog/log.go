// Package mlog defines the common logging interface used across every
// Yorutsuke binary, adapted from the teacher's common/mlog package.
package mlog

import "context"

// Logger is the common interface for log implementation. Every production
// binary wires *mzap.Logger behind it; tests use NoneLogger or a recording
// fake.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)

	// WithFields returns a derived Logger that always attaches the given
	// key-value pairs (e.g. "trace_id", traceID, "user_id", userID).
	WithFields(fields ...any) Logger

	Sync() error
}

// NoneLogger discards every log call. Used as a safe zero-value and in
// tests that don't care about log output.
type NoneLogger struct{}

func (l *NoneLogger) Info(args ...any)                  {}
func (l *NoneLogger) Infof(format string, args ...any)  {}
func (l *NoneLogger) Error(args ...any)                 {}
func (l *NoneLogger) Errorf(format string, args ...any) {}
func (l *NoneLogger) Warn(args ...any)                  {}
func (l *NoneLogger) Warnf(format string, args ...any)  {}
func (l *NoneLogger) Debug(args ...any)                 {}
func (l *NoneLogger) Debugf(format string, args ...any) {}
func (l *NoneLogger) Fatal(args ...any)                 {}
func (l *NoneLogger) Fatalf(format string, args ...any) {}
func (l *NoneLogger) Sync() error                       { return nil }

//nolint:ireturn
func (l *NoneLogger) WithFields(fields ...any) Logger { return l }

type loggerContextKey struct{}

// FromContext extracts the Logger carried in ctx, falling back to a
// NoneLogger so callers never need a nil check.
//
//nolint:ireturn
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(Logger); ok && l != nil {
		return l
	}

	return &NoneLogger{}
}

// WithContext returns a context carrying logger, retrievable via FromContext.
func WithContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}
