// Package utils holds test fixtures shared across packages: synthetic
// 16-bit signals and a recording transport.
package utils

import (
	"math"
	"math/rand/v2"
	"sync"

	"ledaudio/internal/frontend"
)

// MockTransport implements the Transport interface for testing. It keeps a
// copy of every frame it receives.
type MockTransport struct {
	mu      sync.Mutex
	frames  []frontend.Frame
	other   []any
	closed  bool
	SendErr error // Returned by every Send when set.
}

// Send stores the data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := data.(type) {
	case frontend.Frame:
		m.frames = append(m.frames, v)
	case *frontend.Frame:
		m.frames = append(m.frames, *v)
	default:
		m.other = append(m.other, data)
	}
	return m.SendErr
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Frames returns a copy of the frames received so far.
func (m *MockTransport) Frames() []frontend.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]frontend.Frame(nil), m.frames...)
}

// Other returns the non-frame values received so far.
func (m *MockTransport) Other() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.other...)
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateComplexWave returns an A major triad (A3, C#4, E4) at -6 dBFS.
func GenerateComplexWave(size int, sampleRate float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*220*tm)*0.5 +
			math.Sin(2*math.Pi*277.18*tm)*0.3 +
			math.Sin(2*math.Pi*329.63*tm)*0.2
		buffer[i] = int16(signal * math.MaxInt16 * 0.5)
	}
	return buffer
}

// GenerateSineWave returns a sine at frequency with peak amplitude amp
// (0-1 of full scale).
func GenerateSineWave(size int, sampleRate, frequency, amp float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int16(math.Sin(2*math.Pi*frequency*t) * math.MaxInt16 * amp)
	}
	return buffer
}

// GenerateClickTrack returns decaying 1 kHz clicks at bpm, the first at
// sample 0. Each click lasts 20 ms.
func GenerateClickTrack(size int, sampleRate, bpm, amp float64) []int16 {
	buffer := make([]int16, size)
	period := 60 / bpm * sampleRate
	clickLen := int(0.02 * sampleRate)
	for start := 0.0; int(start) < size; start += period {
		s := int(start)
		for j := 0; j < clickLen && s+j < size; j++ {
			env := math.Exp(-float64(j) / float64(clickLen) * 5)
			v := env * math.Sin(2*math.Pi*1000*float64(j)/sampleRate)
			buffer[s+j] = int16(v * math.MaxInt16 * amp)
		}
	}
	return buffer
}

// GenerateNoise returns uniform white noise with peak amplitude amp. The
// same seed yields the same buffer.
func GenerateNoise(size int, seed uint64, amp float64) []int16 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	buffer := make([]int16, size)
	for i := range buffer {
		buffer[i] = int16((rng.Float64()*2 - 1) * math.MaxInt16 * amp)
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in
// [startBin, endBin]; out-of-range bounds are clamped.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
