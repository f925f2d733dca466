package logger

import "context"

type ctxKey struct{}

// WithLogger attaches a Logger to ctx for retrieval by FromContext.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the Logger attached to ctx, or Default if none.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
		return l
	}
	return Default
}

// Debug logs at debug level using the Logger in ctx.
func Debug(ctx context.Context, msg string, args ...any) { logFrom(ctx).Debug(msg, args...) }

// Info logs at info level using the Logger in ctx.
func Info(ctx context.Context, msg string, args ...any) { logFrom(ctx).Info(msg, args...) }

// Warn logs at warn level using the Logger in ctx.
func Warn(ctx context.Context, msg string, args ...any) { logFrom(ctx).Warn(msg, args...) }

// Error logs at error level using the Logger in ctx.
func Error(ctx context.Context, msg string, args ...any) { logFrom(ctx).Error(msg, args...) }

// Debugf logs a formatted debug message using the Logger in ctx.
func Debugf(ctx context.Context, format string, args ...any) { logFrom(ctx).Debugf(format, args...) }

// Infof logs a formatted info message using the Logger in ctx.
func Infof(ctx context.Context, format string, args ...any) { logFrom(ctx).Infof(format, args...) }

// Warnf logs a formatted warn message using the Logger in ctx.
func Warnf(ctx context.Context, format string, args ...any) { logFrom(ctx).Warnf(format, args...) }

// Errorf logs a formatted error message using the Logger in ctx.
func Errorf(ctx context.Context, format string, args ...any) { logFrom(ctx).Errorf(format, args...) }

// logFrom returns the Logger the helpers above write to. Records logged
// through these helpers carry this file as their source location, not the
// helper's caller.
func logFrom(ctx context.Context) Logger {
	return FromContext(ctx)
}
