package logger

import (
	"log/slog"
	"os"
)

// New returns the structured logger used across the application. JSON output
// keeps log lines machine-parseable for the audit pipeline.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
