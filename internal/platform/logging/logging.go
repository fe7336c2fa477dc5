// Package logging configures colored structured logging with tint.
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures the default slog logger at the level from LOG_LEVEL and
// returns it for explicit injection into modules.
func Setup() *slog.Logger {
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      levelFromEnv(),
			TimeFormat: time.Kitchen,
		}),
	)
	slog.SetDefault(logger)
	return logger
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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
