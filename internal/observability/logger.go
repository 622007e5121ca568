package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the process logger: JSON to stdout, debug in dev, with
// trace and account ids attached from the context. It also becomes
// slog.Default so package-level helpers log the same way.
func NewLogger(env string) *slog.Logger {
	log := newLogger(os.Stdout, env)
	slog.SetDefault(log)
	return log
}

func newLogger(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewContextHandler(handler))
}
