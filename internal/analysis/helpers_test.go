// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
)

// pushSine feeds hops of a sine at freq with the given amplitude (full scale
// = 1.0) into ring and returns the sample counter after the last hop.
func pushSine(t testing.TB, ring *SampleRing, freq, amplitude float64, start uint64, hops int) uint64 {
	t.Helper()
	var chunk [HopSize]int16
	counter := start
	for range hops {
		for i := range chunk {
			n := float64(counter + uint64(i))
			chunk[i] = int16(amplitude * 32767 * math.Sin(2*math.Pi*freq*n/SampleRate))
		}
		counter += HopSize
		if err := ring.Push(chunk[:], counter); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	return counter
}

func newTestRing(t testing.TB) *SampleRing {
	t.Helper()
	ring, err := NewSampleRing(MaxWindowLength + HopSize)
	if err != nil {
		t.Fatalf("NewSampleRing: %v", err)
	}
	return ring
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
