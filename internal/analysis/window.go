// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// ErrWindowTooLong is returned when a bin asks for a window longer than the
// compiled maximum.
var ErrWindowTooLong = errors.New("analysis: window length exceeds compiled maximum")

// WindowFunc selects the analysis window shape.
type WindowFunc int

// Available window functions. Hamming is the default for both banks.
const (
	Hamming WindowFunc = iota
	Hann
	Blackman
	BlackmanNuttall
	Nuttall
)

// String returns the lower-case name of the window function.
func (w WindowFunc) String() string {
	switch w {
	case Hamming:
		return "hamming"
	case Hann:
		return "hann"
	case Blackman:
		return "blackman"
	case BlackmanNuttall:
		return "blackmannuttall"
	case Nuttall:
		return "nuttall"
	default:
		return "unknown"
	}
}

// ParseWindowFunc converts a name (case-insensitive) to a WindowFunc. Unknown
// names return Hamming and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "", "hamming":
		return Hamming, nil
	case "hann", "hanning":
		return Hann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hamming, fmt.Errorf("analysis: unknown window function name: '%s'", name)
	}
}

// WindowBank holds one precomputed window per distinct length. Constant-Q bin
// spacing gives many bins the same length, so tables are shared.
type WindowBank struct {
	kind      WindowFunc
	maxLength int
	tables    map[int][]float64
	sums      map[int]float64 // Coherent gain (sum of coefficients) per length.
}

// NewWindowBank precomputes windows for every distinct length in lengths.
// Fails if any length is shorter than 2 or longer than maxLength.
func NewWindowBank(kind WindowFunc, lengths []int, maxLength int) (*WindowBank, error) {
	b := &WindowBank{
		kind:      kind,
		maxLength: maxLength,
		tables:    make(map[int][]float64),
		sums:      make(map[int]float64),
	}

	for _, n := range lengths {
		if n < 2 {
			return nil, fmt.Errorf("%w: got %d", ErrWindowLength, n)
		}
		if n > maxLength {
			return nil, fmt.Errorf("%w: %d > %d", ErrWindowTooLong, n, maxLength)
		}
		if _, ok := b.tables[n]; ok {
			continue
		}

		coeffs := make([]float64, n)
		applyWindow(coeffs, kind)

		var sum float64
		for _, c := range coeffs {
			sum += c
		}
		b.tables[n] = coeffs
		b.sums[n] = sum
	}
	return b, nil
}

// Get returns the window of length n, or nil if none was precomputed.
func (b *WindowBank) Get(n int) []float64 {
	return b.tables[n]
}

// Sum returns the coherent gain of the window of length n.
func (b *WindowBank) Sum(n int) float64 {
	return b.sums[n]
}

// Lengths returns the distinct window lengths held, ascending.
func (b *WindowBank) Lengths() []int {
	out := make([]int, 0, len(b.tables))
	for n := range b.tables {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Kind returns the window function of the bank.
func (b *WindowBank) Kind() WindowFunc { return b.kind }

// applyWindow fills coeffs with the selected window. The slice is set to
// 1.0 first because gonum's window functions scale their input in place.
func applyWindow(coeffs []float64, kind WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch kind {
	case Hann:
		window.Hann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hamming(coeffs)
	}
}
