package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/lmittmann/tint"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/config"
)

// NewLogger builds the service logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default. The json and text formats come from the
// shared logging setup; tint is the colored local-development format.
func NewLogger(cfg *config.Config) *slog.Logger {
	if cfg.LogFormat != "tint" {
		return sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	logger := newTintLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	return logger
}

func newTintLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      parseLevel(level),
		AddSource:  true,
		TimeFormat: time.Kitchen,
	}))
}

// parseLevel maps a level name to a slog.Level, defaulting to info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
