// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging is the shared logging layer for accountsd and
// accountsctl.
//
// Everything rides on log/slog. One Logger fans a record out to up to
// three destinations:
//
//   - stderr, as text or JSON lines (the daemon picks JSON when no
//     terminal is attached)
//   - a dated per-service file under Config.LogDir, always JSON lines
//   - an optional LogExporter for centralized collection
//
// stderr is the primary destination so stdout stays free for command
// output. File logging is opt-in, and a directory that cannot be
// created or opened degrades to the remaining destinations instead of
// failing construction.
//
// Account names identify people. Outside debug logs, prefer shapes and
// counts over raw identities:
//
//	logger.Info("default account", "type", acct.Type, "set", acct.Name != "")
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the minimum-severity filter for a Logger. Levels order as
// Debug < Info < Warn < Error; records below Config.Level are dropped.
type Level int

const (
	// LevelDebug is execution tracing: descriptor parses, watch event
	// coalescing, generation bookkeeping.
	LevelDebug Level = iota

	// LevelInfo is normal operation: reload applied, snapshot
	// installed, watcher started.
	LevelInfo

	// LevelWarn is degraded but serving: one source failed, a stored
	// preference was malformed.
	LevelWarn

	// LevelError is a failed operation in a process that continues.
	LevelError
)

// String returns the level name as it appears in log output:
// "DEBUG", "INFO", "WARN" or "ERROR".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// toSlog maps Level onto the slog scale. Out-of-range values read as
// Info rather than panicking over a config mistake.
func (l Level) toSlog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel is the inverse of Level.String for flag and config
// parsing. Names match case-insensitively. Unknown names return
// LevelInfo along with an error so the caller decides whether that is
// fatal.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Config describes where log records go. The zero value keeps Info and
// up and writes text to stderr.
type Config struct {
	// Level is the minimum severity to keep.
	Level Level

	// LogDir enables file logging. The file is named
	// "{Service}_{YYYY-MM-DD}.log" inside this directory and holds
	// JSON lines regardless of the JSON flag. A leading ~ expands to
	// the home directory. Empty disables file logging.
	LogDir string

	// Service tags every record with a service attribute and names the
	// log file. "accountsd" and "accountsctl" are the expected values.
	Service string

	// JSON switches the stderr handler from text to JSON lines.
	JSON bool

	// Quiet drops the stderr handler, for commands whose stdout is
	// parsed by scripts. A Config with Quiet set and nothing else
	// still logs to stderr: a logger never goes completely mute.
	Quiet bool

	// Exporter, when non-nil, additionally receives every kept record.
	Exporter LogExporter
}

// LogEntry is the exporter's view of one record.
type LogEntry struct {
	Timestamp time.Time
	Level     Level
	Message   string
	Service   string
	Attrs     map[string]any
}

// LogExporter receives every record a Logger keeps, for shipping to an
// aggregation system (Loki, an OTLP collector, object storage).
//
// Export runs inline on the logging goroutine with a one-second
// context: implementations must buffer and return, never block on
// network I/O. Flush drains the buffer and runs during Close; Close
// releases connections and files afterwards.
type LogExporter interface {
	Export(ctx context.Context, entry LogEntry) error
	Flush(ctx context.Context) error
	Close() error
}

// Logger fans structured records out to stderr, an optional file and
// an optional exporter.
//
// A Logger is safe for concurrent use. Close releases the file handle
// and flushes the exporter; a Logger built without either needs no
// Close, though calling it stays harmless.
type Logger struct {
	slog     *slog.Logger
	config   Config
	file     *os.File
	exporter LogExporter
	mu       sync.Mutex
}

// New builds a Logger from config. It always succeeds: an unusable
// LogDir just loses the file destination, and a handler-less config
// falls back to text on stderr.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.toSlog()}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	l := &Logger{config: config, exporter: config.Exporter}

	if config.LogDir != "" {
		if file := openLogFile(config.LogDir, config.Service); file != nil {
			l.file = file
			handlers = append(handlers, slog.NewJSONHandler(file, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = teeHandler(handlers)
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	l.slog = slog.New(handler)
	return l
}

// Default returns an Info-level stderr logger tagged "accounts".
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "accounts"})
}

// openLogFile creates dir if needed and opens the dated log file for
// appending. Returns nil when either step fails; the caller then runs
// without a file destination.
func openLogFile(dir, service string) *os.File {
	dir = expandHome(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil
	}
	if service == "" {
		service = "accounts"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil
	}
	return file
}

// Debug logs development detail, dropped at the default level.
func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }

// Info logs a normal operational event.
func (l *Logger) Info(msg string, args ...any) { l.log(LevelInfo, msg, args...) }

// Warn logs a recoverable problem.
func (l *Logger) Warn(msg string, args ...any) { l.log(LevelWarn, msg, args...) }

// Error logs a failed operation.
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// With returns a child logger that adds the given attributes to every
// record. The child shares the parent's file and exporter, so closing
// either one closes both.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:     l.slog.With(args...),
		config:   l.config,
		file:     l.file,
		exporter: l.exporter,
	}
}

// Slog exposes the underlying slog.Logger for features this wrapper
// does not carry, and for installing the logger process-wide:
//
//	slog.SetDefault(appLogger.Slog())
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes and closes the exporter, then syncs and closes the log
// file. The first error wins but later cleanup still runs.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if l.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		keep(l.exporter.Flush(ctx))
		cancel()
		keep(l.exporter.Close())
	}

	if l.file != nil {
		keep(l.file.Sync())
		keep(l.file.Close())
	}

	return first
}

func (l *Logger) log(level Level, msg string, args ...any) {
	l.slog.Log(context.Background(), level.toSlog(), msg, args...)

	if l.exporter != nil && level >= l.config.Level {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = l.exporter.Export(ctx, LogEntry{
			Timestamp: time.Now(),
			Level:     level,
			Message:   msg,
			Service:   l.config.Service,
			Attrs:     attrMap(args),
		})
		cancel()
	}
}

// teeHandler replays one record into every destination handler, which
// lets stderr and the file disagree on format. A failing destination
// does not starve the others; the first error is reported.
type teeHandler []slog.Handler

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, hh := range h {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(h))
	for i, hh := range h {
		out[i] = hh.WithAttrs(attrs)
	}
	return out
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(h))
	for i, hh := range h {
		out[i] = hh.WithGroup(name)
	}
	return out
}

// expandHome rewrites a leading ~ to the user's home directory. Paths
// without one pass through unchanged, as does everything when the home
// directory cannot be determined.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// attrMap folds slog-style alternating key-value args into a map for
// export. Non-string keys and a dangling trailing key are skipped.
func attrMap(args []any) map[string]any {
	m := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok {
			m[k] = args[i+1]
		}
	}
	return m
}

// BufferedExporter keeps exported entries in memory so tests can
// assert on what a Logger emitted.
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ LogExporter = (*BufferedExporter)(nil)

// NewBufferedExporter returns an empty in-memory exporter.
func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{}
}

// Export appends the entry to the buffer.
func (e *BufferedExporter) Export(_ context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

// Flush is a no-op; buffered entries are already at rest.
func (e *BufferedExporter) Flush(context.Context) error { return nil }

// Close is a no-op.
func (e *BufferedExporter) Close() error { return nil }

// Entries returns a copy of everything exported so far.
func (e *BufferedExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]LogEntry(nil), e.entries...)
}
