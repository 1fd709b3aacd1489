package stdio

import (
	"log/slog"
)

// Option customizes a Stream.
type Option func(*Stream)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Stream) {
		if l != nil {
			s.l = l
		}
	}
}

// WithMaxMessageSize bounds the size of a single inbound line. Longer lines
// are dropped and reported as ErrMessageTooLarge.
func WithMaxMessageSize(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.maxMsg = n
		}
	}
}
