// Package logger provides the structured, context-threaded logger used
// throughout the engine. It wraps log/slog and fans out to multiple
// writers (stderr and any added with WithWriter, such as a log file) via
// slog-multi.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// Logger is the logging surface used by every package in the engine.
// There are no separate "named" accessors — one Logger suffices for the
// whole process (see SPEC_FULL.md §9 Open Question a).
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	With(args ...any) Logger
	WithGroup(name string) Logger
}

type logger struct {
	sl *slog.Logger
}

type options struct {
	debug   bool
	format  string
	writers []io.Writer
	quiet   bool
}

// Option configures a Logger built with NewLogger.
type Option func(*options)

// WithDebug enables debug-level output and source-location attribution.
func WithDebug() Option { return func(o *options) { o.debug = true } }

// WithFormat selects "text" (default) or "json" output.
func WithFormat(format string) Option { return func(o *options) { o.format = format } }

// WithWriter adds an additional destination for log records.
func WithWriter(w io.Writer) Option { return func(o *options) { o.writers = append(o.writers, w) } }

// WithQuiet suppresses the default stderr writer, useful for tests that
// only want to inspect WithWriter's buffer.
func WithQuiet() Option { return func(o *options) { o.quiet = true } }

// NewLogger builds a Logger from the given options.
func NewLogger(opts ...Option) Logger {
	o := &options{format: "text"}
	for _, opt := range opts {
		opt(o)
	}

	writers := o.writers
	if !o.quiet {
		writers = append(writers, os.Stderr)
	}
	if len(writers) == 0 {
		writers = []io.Writer{io.Discard}
	}

	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}

	handlers := make([]slog.Handler, 0, len(writers))
	for _, w := range writers {
		handlerOpts := &slog.HandlerOptions{
			Level:     level,
			AddSource: o.debug,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if !o.debug && a.Key == slog.SourceKey {
					return slog.Attr{}
				}
				return a
			},
		}
		if o.format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(w, handlerOpts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(w, handlerOpts))
		}
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		fanout := make([]slog.Handler, len(handlers))
		copy(fanout, handlers)
		handler = slogmulti.Fanout(fanout...)
	}

	return &logger{sl: slog.New(handler)}
}

// Default is the package-wide logger used by code paths that are not
// explicitly wired through a context (e.g. package-level test helpers).
var Default Logger = NewLogger()

func (l *logger) logWithSource(level slog.Level, msg string, args ...any) {
	if !l.sl.Enabled(context.Background(), level) {
		return
	}
	var pcs [1]uintptr
	// Skip: Callers, logWithSource, the exported method (Debug/Info/...).
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.sl.Handler().Handle(context.Background(), r)
}

func (l *logger) Debug(msg string, args ...any) { l.logWithSource(slog.LevelDebug, msg, args...) }
func (l *logger) Info(msg string, args ...any)  { l.logWithSource(slog.LevelInfo, msg, args...) }
func (l *logger) Warn(msg string, args ...any)  { l.logWithSource(slog.LevelWarn, msg, args...) }
func (l *logger) Error(msg string, args ...any) { l.logWithSource(slog.LevelError, msg, args...) }

func (l *logger) Debugf(format string, args ...any) { l.Debug(fmt.Sprintf(format, args...)) }
func (l *logger) Infof(format string, args ...any)  { l.Info(fmt.Sprintf(format, args...)) }
func (l *logger) Warnf(format string, args ...any)  { l.Warn(fmt.Sprintf(format, args...)) }
func (l *logger) Errorf(format string, args ...any) { l.Error(fmt.Sprintf(format, args...)) }

func (l *logger) With(args ...any) Logger {
	return &logger{sl: l.sl.With(args...)}
}

func (l *logger) WithGroup(name string) Logger {
	return &logger{sl: l.sl.WithGroup(name)}
}

// ParseLevel reports whether a CLI log-level string selects debug output
// (case-insensitive "debug"); every other value means info level.
func ParseLevel(level string) (debug bool) {
	return strings.EqualFold(level, "debug")
}
