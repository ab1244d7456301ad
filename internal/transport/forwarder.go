// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ledaudio/internal/frontend"
	applog "ledaudio/internal/log"
)

var log = applog.Named("transport")

// Forwarder copies new frames from a FrameSource to a set of transports.
// It waits for the source's update signal and sends at most one frame per
// interval; frames published in between are skipped, never queued.
type Forwarder struct {
	source   FrameSource
	sinks    []Transport
	interval time.Duration // Minimum time between sends; 0 sends every update.

	doneChan chan struct{}  // Channel used to signal the forwarding goroutine to stop.
	wg       sync.WaitGroup // Waits for the forwarding goroutine to finish during Stop.
	mu       sync.Mutex     // Protects doneChan during Start/Stop.

	lastSeq uint64 // Owned by the forwarding goroutine.
	sent    atomic.Uint64
	failed  atomic.Uint64
}

// NewForwarder creates a forwarder from source to sinks.
func NewForwarder(source FrameSource, interval time.Duration, sinks ...Transport) (*Forwarder, error) {
	if source == nil {
		return nil, fmt.Errorf("forwarder: frame source cannot be nil")
	}
	if len(sinks) == 0 {
		return nil, fmt.Errorf("forwarder: at least one transport is required")
	}
	if interval < 0 {
		interval = 0
	}
	return &Forwarder{source: source, sinks: sinks, interval: interval}, nil
}

// Start launches the forwarding goroutine. Calling Start on a running
// forwarder is a no-op.
func (f *Forwarder) Start() {
	f.mu.Lock()
	if f.doneChan != nil {
		f.mu.Unlock()
		log.Warnf("forwarder: Start called but already running")
		return
	}
	done := make(chan struct{})
	f.doneChan = done
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.run(done)
	}()
}

func (f *Forwarder) run(done <-chan struct{}) {
	var wait *time.Timer
	if f.interval > 0 {
		wait = time.NewTimer(f.interval)
		defer wait.Stop()
	}

	for {
		select {
		case <-done:
			return
		case <-f.source.Updated():
		}

		f.forward()

		if wait != nil {
			wait.Reset(f.interval)
			select {
			case <-done:
				return
			case <-wait.C:
			}
		}
	}
}

// forward sends the newest frame to every sink if it was not sent before.
// It reports whether a frame was sent.
func (f *Forwarder) forward() bool {
	frame, seq := f.source.Latest()
	if seq == 0 || seq == f.lastSeq {
		return false
	}
	f.lastSeq = seq

	for _, sink := range f.sinks {
		if err := sink.Send(frame); err != nil {
			f.failed.Add(1)
			log.Debugf("forwarder: send failed for hop %d: %v", frame.HopIndex, err)
		}
	}
	f.sent.Add(1)
	return true
}

// Sent returns the number of frames forwarded so far.
func (f *Forwarder) Sent() uint64 { return f.sent.Load() }

// Failed returns the number of failed sink sends.
func (f *Forwarder) Failed() uint64 { return f.failed.Load() }

// Stop signals the forwarding goroutine and waits for it to exit. The
// transports stay open.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	done := f.doneChan
	f.doneChan = nil
	f.mu.Unlock()

	if done == nil {
		return
	}
	close(done)
	f.wg.Wait()
}

// Close stops the forwarder and closes every transport.
func (f *Forwarder) Close() error {
	f.Stop()
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	log.Infof("forwarder: closed after %d frames (%d failed sends)", f.Sent(), f.Failed())
	return errors.Join(errs...)
}

// frameOf extracts a frame from a Send argument.
func frameOf(data any) (*frontend.Frame, bool) {
	switch v := data.(type) {
	case frontend.Frame:
		return &v, true
	case *frontend.Frame:
		return v, v != nil
	default:
		return nil, false
	}
}
