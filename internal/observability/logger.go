package observability

import (
	"io"
	"log/slog"
	"os"
)

const serviceName = "contextbridge"

// NewLogger returns the JSON logger used by every binary. Debug lines are only
// emitted in dev.
func NewLogger(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

func newLogger(env string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		// connector configs may carry credentials; they are never logged whole
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "config" || a.Key == "password" {
				return slog.String(a.Key, "[redacted]")
			}
			return a
		},
	})

	return slog.New(NewTraceHandler(handler)).With("service", serviceName, "env", env)
}
