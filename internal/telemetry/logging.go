package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/dunamismax/passportflow/internal/config"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Format "auto" picks the console
// writer when out is a terminal and JSON lines otherwise.
func NewLogger(cfg config.LoggingConfig, out io.Writer, component string) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	if useConsole(cfg.Format, out) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp()
	if component != "" {
		logger = logger.Str("component", component)
	}
	return logger.Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func useConsole(format string, out io.Writer) bool {
	switch format {
	case "console":
		return true
	case "json":
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
