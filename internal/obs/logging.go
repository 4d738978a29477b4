// Package obs holds the process-wide structured logger.
package obs

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the global structured logger. It falls back to slog's default
// until InitLogger runs, so packages and tests can log without setup.
var Logger = slog.Default()

// InitLogger installs a JSON handler on stdout at the given level
// (debug, info, warn, error; anything else means info).
func InitLogger(level string) {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLevel(level)})
	Logger = slog.New(h)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
