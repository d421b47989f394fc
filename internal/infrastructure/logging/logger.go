package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nvalkov/station-core/internal/infrastructure/config"
)

// serviceName tags every log entry so aggregated streams can be
// filtered back to this process.
const serviceName = "stationd"

// logFileMode keeps log files owner-only; entries may carry device
// identifiers and request detail.
const logFileMode = 0600

// Logger is the station's structured logger, a thin wrapper over
// log/slog. The promoted methods (Debug, Info, Warn, Error) are the
// whole logging API; the wrapper adds the default fields and keeps
// With returning the wrapper type.
//
// Safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of the station config.
//
// Format selects the handler: "text" for development readability,
// anything else produces JSON for machine parsing. Level drops entries
// below the configured severity. Output picks the sink: stdout, stderr,
// or an append-only file at file.path.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Stamped on every entry alongside the service name
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := buildHandler(cfg, sink(cfg))

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// sink resolves the configured output destination. A file sink that
// cannot be opened falls back to stderr so startup still logs
// somewhere.
func sink(cfg config.LoggingConfig) io.Writer {
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		return os.Stderr
	case "file":
		f, err := os.OpenFile(cfg.File.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFileMode)
		if err != nil {
			// No logger exists yet, so report directly.
			fmt.Fprintf(os.Stderr, "logging: cannot open %s: %v, using stderr\n", cfg.File.Path, err)
			return os.Stderr
		}
		return f
	default:
		return os.Stdout
	}
}

// buildHandler constructs the slog handler for the configured format
// and level.
func buildHandler(cfg config.LoggingConfig, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	if strings.ToLower(cfg.Format) == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// parseLevel maps a config level string onto slog.Level.
//
// Recognised: debug, info, warn/warning, error. Anything else runs at
// info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying extra default attributes.
//
// Parameters:
//   - args: Key-value pairs added to every entry from the child
//
// Returns:
//   - *Logger: New logger; the receiver is unchanged
//
// Example:
//
//	writerLogger := logger.With("component", "batch_writer")
//	writerLogger.Info("flush complete") // Includes component=batch_writer
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a stdout JSON logger at info level, for use during
// early startup before the config file has been read.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
