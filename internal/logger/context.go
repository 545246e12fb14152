package logger

import (
	"context"
	"sync"
)

// loggerKey carries a task-scoped logger through a context.
type loggerKey struct{}

// The fallback logger used when a context carries none. It starts as a
// plain stdout logger so failures before configuration are never silent.
var (
	defaultLogger   *Logger
	defaultLoggerMu sync.RWMutex
)

func init() {
	defaultLogger = New(nil)
}

// SetDefaultLogger replaces the fallback logger. main calls this once
// the configured logger exists.
func SetDefaultLogger(l *Logger) {
	if l == nil {
		return
	}
	defaultLoggerMu.Lock()
	defaultLogger = l
	defaultLoggerMu.Unlock()
}

// WithContext returns a context carrying this logger. FromContext on the
// result yields the logger with all of its fields.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger carried by ctx, or the fallback logger.
// It never returns nil.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
			return l
		}
	}
	defaultLoggerMu.RLock()
	l := defaultLogger
	defaultLoggerMu.RUnlock()
	return l
}
