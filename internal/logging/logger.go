// Package logging builds the zerolog logger shared by the app and the comparison service.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a human-readable console logger at debug level in dev mode, and a JSON
// logger at info level otherwise.
func New(devMode bool) zerolog.Logger {
	return NewWithWriter(os.Stderr, devMode)
}

// NewWithWriter is New with an explicit destination
func NewWithWriter(w io.Writer, devMode bool) zerolog.Logger {
	if devMode {
		console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
		return zerolog.New(console).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}
	return zerolog.New(w).Level(zerolog.InfoLevel).With().Timestamp().Logger()
}
