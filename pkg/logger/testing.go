package logger

import (
	"log/slog"
	"os"
)

// NewTesting returns a logger for tests. Output is limited to errors unless
// DEBUG is set to 1 (info) or 2 (debug).
func NewTesting() *slog.Logger {
	var level slog.Level
	switch os.Getenv("DEBUG") {
	case "2":
		level = slog.LevelDebug
	case "1":
		level = slog.LevelInfo
	default:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
