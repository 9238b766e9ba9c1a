// Package logger builds the application's slog.Logger: structured JSON to
// stdout, optional Sentry forwarding for warnings and errors, and per-call
// context extraction so request-scoped attributes (request ID, session ID)
// appear on every record without threading them through call sites.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// Config holds logging configuration.
type Config struct {
	Level             string `env:"LOG_LEVEL" envDefault:"info"`
	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
}

// Extractor pulls one slog attribute out of a request context.
// It runs on every log call so it must be cheap.
type Extractor func(ctx context.Context) (slog.Attr, bool)

// New creates the application logger. Records go to stdout as JSON; when a
// Sentry DSN is configured, warnings and errors are forwarded there too.
// A failed Sentry init degrades to stdout-only rather than aborting startup.
func New(cfg Config, extractors ...Extractor) *slog.Logger {
	stdout := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	handler := slog.Handler(stdout)
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
			EnableLogs:  true,
		}); err != nil {
			slog.New(stdout).Error("sentry init failed", slog.String("error", err.Error()))
		} else {
			sentryHandler := sentryslog.Option{
				EventLevel: []slog.Level{slog.LevelError},
				LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
			}.NewSentryHandler(context.Background())
			handler = fanout(stdout, sentryHandler)
		}
	}

	return slog.New(withExtractors(handler, extractors...))
}

// NewNope creates a logger that discards everything. It stands in wherever a
// component accepts an optional logger.
func NewNope() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
