// Package logging builds the zerolog logger shared by the server and the
// background consumer.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w.  In the dev environment output is the
// human readable console format; elsewhere it is one JSON object per line.
// An unknown level falls back to info.
func New(w io.Writer, env, level string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if strings.EqualFold(env, "dev") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything; tests use it.
func Nop() zerolog.Logger { return zerolog.Nop() }
