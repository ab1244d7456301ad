// SPDX-License-Identifier: MIT
package frontend

import "sync"

// Handoff passes frames from the processing goroutine to any number of
// readers. Publish copies the frame in, Latest copies it out, so neither side
// ever holds a reference into the other's memory. Readers that fall behind
// simply see the newest frame; nothing queues.
type Handoff struct {
	mu    sync.RWMutex
	frame Frame
	seq   uint64

	notify chan struct{}
}

// NewHandoff creates an empty handoff.
func NewHandoff() *Handoff {
	return &Handoff{notify: make(chan struct{}, 1)}
}

// Publish stores a copy of f. It never blocks.
func (h *Handoff) Publish(f *Frame) {
	h.mu.Lock()
	h.frame = *f
	h.seq++
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Latest returns a copy of the newest frame and its sequence number. The
// sequence is 0 until the first Publish.
func (h *Handoff) Latest() (Frame, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frame, h.seq
}

// Seq returns the number of frames published so far.
func (h *Handoff) Seq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Updated is signalled after a Publish. Signals coalesce, so a reader must
// call Latest rather than count signals.
func (h *Handoff) Updated() <-chan struct{} { return h.notify }
