// Package log configures the process-wide slog logger.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a text handler on stderr at the given level. Unknown level
// names fall back to info so a typo in LOG_LEVEL never silences a binary.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns a logger tagged with the emitting module, so lines from
// the scheduler, the queue consumer and the API are distinguishable in mixed
// output.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
