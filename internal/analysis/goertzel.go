// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutputLength is returned when a caller passes an output slice shorter
// than the bank.
var ErrOutputLength = errors.New("analysis: output slice shorter than bank")

// sampleScale maps int16 PCM onto [-1, 1).
const sampleScale = 1.0 / 32768.0

// BinBank extracts one magnitude per bin with a single-pass Goertzel over the
// most recent window of each bin. It is stateless across hops: every call
// recomputes all bins from the ring contents.
//
// Each bin picks its own window length, so low bins get long windows with
// fine frequency resolution and high bins get short ones. Nothing is spent on
// frequencies no bin asks for, and memory is O(bins) rather than O(FFT size).
type BinBank struct {
	name    string
	specs   []BinSpec
	windows [][]float64 // Per-bin window, shared with other bins of equal N.
	norms   []float64   // 2/(sum(window)*32768): full-scale sine reads ~1.0.
}

// Compile-time check.
var _ BankInfo = (*BinBank)(nil)

// NewBinBank binds each spec to its precomputed window. Every window length
// must be present in windows.
func NewBinBank(name string, specs []BinSpec, windows *WindowBank) (*BinBank, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: bank %q is empty", ErrBinCount, name)
	}

	b := &BinBank{
		name:    name,
		specs:   append([]BinSpec(nil), specs...),
		windows: make([][]float64, len(specs)),
		norms:   make([]float64, len(specs)),
	}
	for i, s := range specs {
		w := windows.Get(s.WindowLength)
		if w == nil {
			return nil, fmt.Errorf("bank %q bin %d: no window of length %d", name, i, s.WindowLength)
		}
		b.windows[i] = w
		b.norms[i] = 2 * sampleScale / windows.Sum(s.WindowLength)
	}
	return b, nil
}

// ProcessAll writes the magnitude of every bin into out.
// Performance Critical (Hot Path):
// - No allocations, windows read straight out of ring storage
// - Two multiplies and one subtract per sample in the recurrence
func (b *BinBank) ProcessAll(ring *SampleRing, out []float64) error {
	if len(out) < len(b.specs) {
		return ErrOutputLength
	}
	for i := range b.specs {
		samples, err := ring.ReadWindow(0, b.specs[i].WindowLength)
		if err != nil {
			return err
		}
		out[i] = goertzelMagnitude(samples, b.windows[i], b.specs[i].Coefficient) * b.norms[i]
	}
	return nil
}

// goertzelMagnitude runs the Goertzel recurrence over the windowed samples
// and returns |X(w)| in raw int16 units.
func goertzelMagnitude(samples []int16, window []float64, coeff float64) float64 {
	var s1, s2 float64
	window = window[:len(samples)]
	for i, x := range samples {
		s0 := float64(x)*window[i] + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}

	// power = s1^2 + s2^2 - coeff*s1*s2; rounding can take it slightly below 0.
	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power <= 0 {
		return 0
	}
	return math.Sqrt(power)
}

// Name returns the bank name.
func (b *BinBank) Name() string { return b.name }

// Len returns the number of bins.
func (b *BinBank) Len() int { return len(b.specs) }

// Frequency returns the target frequency of a bin, or 0 when out of range.
func (b *BinBank) Frequency(bin int) float64 {
	if bin < 0 || bin >= len(b.specs) {
		return 0
	}
	return b.specs[bin].FrequencyHz
}

// WindowLength returns the window length of a bin, or 0 when out of range.
func (b *BinBank) WindowLength(bin int) int {
	if bin < 0 || bin >= len(b.specs) {
		return 0
	}
	return b.specs[bin].WindowLength
}

// Spec returns a copy of the spec of a bin.
func (b *BinBank) Spec(bin int) BinSpec { return b.specs[bin] }

// MaxWindow returns the longest window length used by the bank.
func (b *BinBank) MaxWindow() int {
	longest := 0
	for _, s := range b.specs {
		longest = max(longest, s.WindowLength)
	}
	return longest
}
