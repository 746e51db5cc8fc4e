package logging

import (
	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/logger"
)

// WailsLogger routes the Wails runtime log through zerolog
type WailsLogger struct {
	log zerolog.Logger
}

var _ logger.Logger = (*WailsLogger)(nil)

// NewWailsLogger wraps log for use as options.App.Logger
func NewWailsLogger(log zerolog.Logger) *WailsLogger {
	return &WailsLogger{log: log.With().Str("component", "wails").Logger()}
}

func (l *WailsLogger) Print(message string)   { l.log.Log().Msg(message) }
func (l *WailsLogger) Trace(message string)   { l.log.Trace().Msg(message) }
func (l *WailsLogger) Debug(message string)   { l.log.Debug().Msg(message) }
func (l *WailsLogger) Info(message string)    { l.log.Info().Msg(message) }
func (l *WailsLogger) Warning(message string) { l.log.Warn().Msg(message) }
func (l *WailsLogger) Error(message string)   { l.log.Error().Msg(message) }

// Fatal logs at error level; the Wails runtime decides whether to exit
func (l *WailsLogger) Fatal(message string) { l.log.Error().Bool("fatal", true).Msg(message) }
