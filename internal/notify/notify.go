// Package notify carries short user-facing signals out of the feed core.
package notify

import (
	"github.com/rs/zerolog"
)

// Kind classifies a notification.
type Kind string

const (
	LoadFailed     Kind = "load_failed"
	PlaybackFailed Kind = "playback_failed"
)

// Sink receives notifications. Implementations must not block the caller.
type Sink interface {
	Notify(kind Kind, message string)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(kind Kind, message string)

// Notify calls f(kind, message).
func (f SinkFunc) Notify(kind Kind, message string) { f(kind, message) }

// Discard drops every notification.
var Discard Sink = SinkFunc(func(Kind, string) {})

// LogSink writes notifications to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink returns a Sink that logs at warn level for failures and info otherwise.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notify").Logger()}
}

// Notify implements Sink.
func (s *LogSink) Notify(kind Kind, message string) {
	ev := s.logger.Info()
	if kind == LoadFailed || kind == PlaybackFailed {
		ev = s.logger.Warn()
	}
	ev.Str("kind", string(kind)).Msg(message)
}
