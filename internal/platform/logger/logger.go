// Package logger owns the process zerolog logger and the context fields
// (run, unit, request) that scope it
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"commitcrawl/internal/core/version"
	"commitcrawl/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Options configures the root logger
type Options struct {
	Level   string // zerolog level name; unknown names mean info
	Format  string // "console" or "json"
	Service string
	Version string
	Writer  io.Writer // default os.Stderr

	NoColor      bool
	WithCaller   bool
	StaticFields map[string]string
}

// FromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_SERVICE, LOG_NO_COLOR and LOG_CALLER
func FromEnv() Options {
	env := raw.New().Prefix("LOG_")
	return Options{
		Level:      strings.ToLower(env.Get("LEVEL", "info")),
		Format:     strings.ToLower(env.Get("FORMAT", "console")),
		Service:    env.Get("SERVICE", version.Service),
		Version:    version.Info().Version,
		NoColor:    env.GetBool("NO_COLOR", false),
		WithCaller: env.GetBool("CALLER", false),
	}
}

// Logger is the logging type used across the module
type Logger = zerolog.Logger

var (
	once   sync.Once
	root   atomic.Pointer[zerolog.Logger]
	inited atomic.Bool
)

// Get is the root logger, built from FromEnv on first use unless Init ran
func Get() *Logger {
	if !inited.Load() {
		Init(FromEnv())
	}
	return root.Load()
}

// Init builds the root logger. Only the first call has any effect.
func Init(opt Options) {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		w := opt.Writer
		if w == nil {
			w = os.Stderr
		}
		if opt.Format != "json" {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: opt.NoColor}
		}

		fields := map[string]any{}
		if bi, ok := debug.ReadBuildInfo(); ok {
			fields["go_version"] = bi.GoVersion
		}
		for k, v := range map[string]string{"service": opt.Service, "version": opt.Version} {
			if v != "" {
				fields[k] = v
			}
		}
		for k, v := range opt.StaticFields {
			fields[k] = v
		}

		lc := zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp().Fields(fields)
		if opt.WithCaller {
			lc = lc.Caller()
		}
		log := lc.Logger()
		root.Store(&log)
		inited.Store(true)
	})
}

// parseLevel maps a level name to zerolog; "warning" is accepted, anything
// unknown or disabled is info
func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel || lvl == zerolog.Disabled {
		return zerolog.InfoLevel
	}
	return lvl
}

type ctxKey struct{ name string }

var (
	keyRunID     = ctxKey{"run_id"}
	keyUnit      = ctxKey{"unit"}
	keyRequestID = ctxKey{"request_id"}
)

// WithRun tags ctx with the crawl run id
func WithRun(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, keyRunID, runID)
}

// WithUnit tags ctx with the work unit currently in flight
func WithUnit(ctx context.Context, unit string) context.Context {
	if unit == "" {
		return ctx
	}
	return context.WithValue(ctx, keyUnit, unit)
}

// WithRequest tags ctx with an http request id
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	return context.WithValue(ctx, keyRequestID, reqID)
}

// RunID returns the run id carried by ctx, if any
func RunID(ctx context.Context) string {
	s, _ := ctx.Value(keyRunID).(string)
	return s
}

// RequestID returns the request id carried by ctx, if any
func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(keyRequestID).(string)
	return s
}

// C returns a child logger enriched from ctx (run_id, unit, request_id)
func C(ctx context.Context) *Logger {
	builder := Get().With()
	for _, k := range []ctxKey{keyRunID, keyUnit, keyRequestID} {
		if s, ok := ctx.Value(k).(string); ok && s != "" {
			builder = builder.Str(k.name, s)
		}
	}
	ll := builder.Logger()
	return &ll
}

// Named returns a child logger with a component field
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	ll := Get().With().Str("component", component).Logger()
	return &ll
}
