package logging

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// EnvPrefix is shared by every STREAMHUB_* environment knob.
const EnvPrefix = "STREAMHUB_"

type Options struct {
	Level string
	JSON  bool
}

var def atomic.Pointer[slog.Logger]

func init() {
	def.Store(newLogger(Options{}))
}

func newLogger(opts Options) *slog.Logger {
	cfg := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, cfg))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, cfg))
}

func Configure(opts Options) {
	def.Store(newLogger(opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the process-wide logger.
func L() *slog.Logger {
	return def.Load()
}

// InitFromEnv configures the default logger from STREAMHUB_LOG_LEVEL and
// STREAMHUB_LOG_JSON, before the config file is available.
func InitFromEnv() {
	json, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(EnvPrefix + "LOG_JSON")))
	Configure(Options{Level: os.Getenv(EnvPrefix + "LOG_LEVEL"), JSON: json})
}
