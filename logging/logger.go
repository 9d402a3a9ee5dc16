// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Format names accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a logger at level. Console output goes to stderr in a human
// readable form, json output goes to stdout.
func New(level, format string) (zerolog.Logger, error) {
	switch format {
	case FormatConsole, "":
		return NewWithWriter(level, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	case FormatJSON:
		return NewWithWriter(level, os.Stdout)
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}
}

// NewWithWriter returns a logger at level writing to w.
func NewWithWriter(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}
