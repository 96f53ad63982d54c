// Package logger provides the structured slog setup shared by the bot, the
// dialogue engine and the CLI. Every line carries a component and an event;
// correlation and dialogue identifiers come from the context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/scenebot/core/buildinfo"
	coreconfig "github.com/m3rciful/scenebot/core/config"
)

// Options describes the process logger.
type Options struct {
	Level      slog.Level
	JSON       bool
	KeyOrder   []string
	SampleNum  int
	SampleDen  int
	Trace      bool
	Stdout     io.Writer
	File       string
	ErrorsFile string
}

// OptionsFromConfig resolves the logging section. JSON output is the
// default unless the format says otherwise or the profile is debug/dev.
func OptionsFromConfig(cfg *coreconfig.Config) Options {
	opts := Options{
		Level:     slog.LevelInfo,
		JSON:      true,
		KeyOrder:  defaultKeyOrder,
		SampleNum: defaultSampleNum,
		SampleDen: defaultSampleDen,
		Trace:     isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE")),
		Stdout:    os.Stdout,
	}
	if cfg == nil {
		return opts
	}
	lc := cfg.Logging
	opts.Level = parseLevel(lc.Level)
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		opts.JSON = false
	case "json":
	default:
		profile := strings.ToLower(strings.TrimSpace(lc.Profile))
		opts.JSON = profile != "debug" && profile != "dev"
	}
	if order := splitKeys(lc.KeysOrder); len(order) > 0 {
		opts.KeyOrder = order
	}
	opts.SampleNum, opts.SampleDen = parseSampleRatio(lc.DebugSample)
	if dir := strings.TrimSpace(lc.Dir); dir != "" {
		if f := strings.TrimSpace(lc.BotFile); f != "" {
			opts.File = filepath.Join(dir, f)
		}
		if f := strings.TrimSpace(lc.ErrorsFile); f != "" {
			opts.ErrorsFile = filepath.Join(dir, f)
		}
	}
	return opts
}

func splitKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return nil
	}
	var out []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

var (
	current atomic.Pointer[slog.Logger]

	initOnce sync.Once
	stateMu  sync.Mutex
	writer   *asyncWriter
	closers  []io.Closer

	levelVar      slog.LevelVar
	debugSampler  ratioSampler
	traceOverride atomic.Bool
)

func init() {
	current.Store(slog.New(slog.DiscardHandler))
}

// InitLogger installs the process logger described by cfg. Calls after the
// first one are no-ops. Until it runs every helper logs to a discard handler.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		if err = install(OptionsFromConfig(cfg)); err != nil {
			return
		}
		store := ""
		if cfg != nil {
			store = cfg.Storage.Driver
		}
		build := buildinfo.Get()
		Info(context.Background(), "app", "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("version", build.Version),
			slog.String("build_commit", build.Commit),
			slog.String("build_time", build.Date),
			slog.String("store", store),
		)
	})
	return err
}

func install(opts Options) error {
	outputs := []output{{w: opts.Stdout, minLevel: slog.LevelDebug}}
	var opened []io.Closer
	for _, sink := range []struct {
		path string
		min  slog.Level
	}{{opts.File, slog.LevelDebug}, {opts.ErrorsFile, slog.LevelError}} {
		if sink.path == "" {
			continue
		}
		f, err := openLogFile(sink.path)
		if err != nil {
			for _, c := range opened {
				_ = c.Close()
			}
			return err
		}
		opened = append(opened, f)
		outputs = append(outputs, output{w: f, minLevel: sink.min})
	}

	levelVar.Set(opts.Level)
	debugSampler.Set(opts.SampleNum, opts.SampleDen)
	traceOverride.Store(opts.Trace)

	format := formatKV
	if opts.JSON {
		format = formatJSON
	}
	w := newAsyncWriter(outputs, 256)
	l := slog.New(newStructuredHandler(handlerConfig{
		level:    &levelVar,
		sink:     w,
		format:   format,
		keyOrder: opts.KeyOrder,
	}))

	stateMu.Lock()
	writer, closers = w, opened
	stateMu.Unlock()
	current.Store(l)
	slog.SetDefault(l)
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open %s: %w", path, err)
	}
	return f, nil
}

// Shutdown flushes queued lines and closes log files. Later log calls are
// discarded.
func Shutdown() error {
	stateMu.Lock()
	defer stateMu.Unlock()
	if writer == nil {
		return nil
	}
	current.Store(slog.New(slog.DiscardHandler))
	errs := []error{writer.Close()}
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	writer, closers = nil, nil
	return errors.Join(errs...)
}

// Component returns the process logger scoped to a component.
func Component(name string) *slog.Logger {
	l := current.Load()
	if name = strings.TrimSpace(name); name == "" {
		return l
	}
	return l.With("component", name)
}

// LogEvent writes an event through l, or through the process logger when l is nil.
func LogEvent(ctx context.Context, l *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if l == nil {
		l = current.Load()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	l.LogAttrs(ctx, level, "", attrs...)
}

// Event writes an event for component.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug event should be
// written. TRACE=1 in the environment lets every event through.
func ShouldSampleDebug() bool {
	return traceOverride.Load() || debugSampler.Allow()
}
