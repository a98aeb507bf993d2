// Package logger builds the process-wide zerolog root logger. Components
// derive their own from it with .With().Str("component", ...).
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the root logger and sets the global level. level takes
// zerolog's level names (trace through panic); anything unparseable falls
// back to info. format "pretty" renders a human-readable console for
// development, any other value emits JSON lines.
func Setup(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	out := io.Writer(os.Stdout)
	if format == "pretty" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).With().Timestamp().Caller().Logger()
}
