package transport

import "ledaudio/internal/frontend"

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// FrameSource is the reader side of a frame handoff. Latest returns the
// newest frame and its sequence number; Updated is signalled after each
// publish and may coalesce signals.
type FrameSource interface {
	Latest() (frontend.Frame, uint64)
	Updated() <-chan struct{}
}

var _ FrameSource = (*frontend.Handoff)(nil)
