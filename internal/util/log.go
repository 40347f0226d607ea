package util

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const ctxKeyLogger contextKey = "logger"

// LoggerConfig mirrors config.Logger to keep util free of config imports.
type LoggerConfig struct {
	Level              zerolog.Level
	PrettyPrintConsole bool
	Caller             bool
}

// ConfigureLogger sets the global zerolog level and output.
func ConfigureLogger(cfg LoggerConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(cfg.Level)

	logger := log.Logger
	if cfg.PrettyPrintConsole {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	if cfg.Caller {
		logger = logger.With().Caller().Logger()
	}

	log.Logger = logger
}

// WithLogger attaches logger to ctx.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logger)
}

// LogFromContext returns the request-scoped logger or the global one.
func LogFromContext(ctx context.Context) *zerolog.Logger {
	l, ok := ctx.Value(ctxKeyLogger).(zerolog.Logger)
	if !ok {
		l = log.Logger
	}

	return &l
}
