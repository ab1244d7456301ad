// SPDX-License-Identifier: MIT
package frontend

import (
	"sync"
	"testing"
)

func TestHandoffLatest(t *testing.T) {
	h := NewHandoff()
	if _, seq := h.Latest(); seq != 0 {
		t.Fatalf("seq before Publish = %d, expected 0", seq)
	}

	f := Frame{HopIndex: 7, BPM: 120}
	h.Publish(&f)
	f.HopIndex = 99 // The handoff holds its own copy.

	got, seq := h.Latest()
	if seq != 1 || got.HopIndex != 7 || got.BPM != 120 {
		t.Errorf("Latest() = hop %d bpm %v seq %d, expected hop 7 bpm 120 seq 1", got.HopIndex, got.BPM, seq)
	}

	select {
	case <-h.Updated():
	default:
		t.Error("Updated() not signalled after Publish")
	}
}

func TestHandoffSignalsCoalesce(t *testing.T) {
	h := NewHandoff()
	for i := range 10 {
		h.Publish(&Frame{HopIndex: uint64(i)})
	}

	<-h.Updated()
	select {
	case <-h.Updated():
		t.Error("expected a single pending signal for several publishes")
	default:
	}
	if got, seq := h.Latest(); got.HopIndex != 9 || seq != 10 {
		t.Errorf("Latest() = hop %d seq %d, expected hop 9 seq 10", got.HopIndex, seq)
	}
}

func TestHandoffConcurrentReaders(t *testing.T) {
	h := NewHandoff()
	const frames = 2000

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for last < frames {
				f, seq := h.Latest()
				if seq < last {
					t.Errorf("sequence went backwards: %d after %d", seq, last)
					return
				}
				// Each frame is published whole: fields agree with each other.
				if seq > 0 && f.HopIndex != seq-1 {
					t.Errorf("torn frame: hop %d with seq %d", f.HopIndex, seq)
					return
				}
				last = seq
			}
		}()
	}

	for i := range frames {
		f := Frame{HopIndex: uint64(i)}
		h.Publish(&f)
	}
	wg.Wait()

	if h.Seq() != frames {
		t.Errorf("Seq() = %d, expected %d", h.Seq(), frames)
	}
}

func BenchmarkHandoffPublish(b *testing.B) {
	h := NewHandoff()
	f := Frame{BPM: 120}
	for b.Loop() {
		h.Publish(&f)
	}
}
