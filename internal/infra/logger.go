package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs a zerolog.Logger with sane defaults for the service.
func NewLogger(appEnv string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv)
}

// NewComponentLogger tags every entry with the emitting binary.
func NewComponentLogger(appEnv, component string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv).With().Str("component", component).Logger()
}

// NopLogger discards everything. Providers fall back to it when constructed
// without a logger.
func NopLogger() *Logger {
	l := Logger(zerolog.New(io.Discard))
	return &l
}

func newLogger(out io.Writer, appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	return logger
}

// Logger aliases the zerolog.Logger so callers outside the infra package can
// depend on the logging contract without importing the third-party module
// directly.
type Logger = zerolog.Logger
