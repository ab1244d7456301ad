// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"

	"ledaudio/pkg/bitint"
)

var (
	// ErrInsufficientHistory is returned when a read reaches further back than
	// the ring retains.
	ErrInsufficientHistory = errors.New("analysis: window exceeds retained sample history")
	// ErrCounterRegression is returned when a pushed chunk would move the
	// sample counter backwards.
	ErrCounterRegression = errors.New("analysis: sample counter moved backwards")
	// ErrChunkTooLarge is returned when a single push exceeds ring capacity.
	ErrChunkTooLarge = errors.New("analysis: chunk larger than ring capacity")
	// ErrWindowLength is returned for window lengths below two samples.
	ErrWindowLength = errors.New("analysis: window length must be at least 2")
)

// SampleRing holds recent PCM history together with the monotonic sample
// counter of the stream.
//
// Storage is mirrored: every sample is written at pos and pos+capacity, so any
// window of up to capacity samples is one contiguous slice and reads never
// copy. Capacity is a power of two so the write position wraps with a mask.
// The ring starts out full of silence and that silence counts as history.
//
// Not safe for concurrent use; only the hop processing path touches it.
type SampleRing struct {
	data     []int16 // 2*capacity, second half mirrors the first.
	capacity int
	mask     int
	writePos int    // Next write index in [0, capacity).
	counter  uint64 // Stream position of the newest sample (exclusive end).
}

// NewSampleRing creates a ring able to hold at least minCapacity samples.
// The actual capacity is rounded up to the next power of two.
func NewSampleRing(minCapacity int) (*SampleRing, error) {
	if minCapacity < 1 {
		return nil, fmt.Errorf("analysis: ring capacity must be positive, got %d", minCapacity)
	}
	capacity := bitint.NextPowerOfTwo(minCapacity)
	return &SampleRing{
		data:     make([]int16, 2*capacity),
		capacity: capacity,
		mask:     bitint.Mask(capacity),
	}, nil
}

// Push appends samples and sets the counter to counterEnd, the stream index
// one past the last sample in the chunk. A counter that jumps forward (samples
// dropped upstream) is accepted; one that moves backwards is rejected and
// nothing is written.
func (r *SampleRing) Push(samples []int16, counterEnd uint64) error {
	n := len(samples)
	if n > r.capacity {
		return ErrChunkTooLarge
	}
	if counterEnd < r.counter+uint64(n) {
		return ErrCounterRegression
	}

	w := r.writePos
	for _, s := range samples {
		r.data[w] = s
		r.data[w+r.capacity] = s
		w = (w + 1) & r.mask
	}
	r.writePos = w
	r.counter = counterEnd
	return nil
}

// ReadWindow returns the n most recent samples ending offset samples before
// now, oldest first. The slice aliases ring storage and is valid until the
// next Push.
func (r *SampleRing) ReadWindow(offset, n int) ([]int16, error) {
	if n < 2 {
		return nil, ErrWindowLength
	}
	if offset < 0 || n+offset > r.capacity {
		return nil, ErrInsufficientHistory
	}
	start := (r.writePos - offset - n) & r.mask
	return r.data[start : start+n], nil
}

// Counter returns the stream index one past the newest sample.
func (r *SampleRing) Counter() uint64 { return r.counter }

// Capacity returns the number of samples retained.
func (r *SampleRing) Capacity() int { return r.capacity }

// Reset clears history back to silence and rewinds the counter.
func (r *SampleRing) Reset() {
	clear(r.data)
	r.writePos = 0
	r.counter = 0
}
