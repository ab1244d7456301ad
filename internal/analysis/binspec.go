// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrFrequencyRange is returned for bin frequencies outside (0, Nyquist).
	ErrFrequencyRange = errors.New("analysis: bin frequency must be positive and below Nyquist")
	// ErrDuplicateBin is returned when two bins of a bank share a frequency.
	ErrDuplicateBin = errors.New("analysis: duplicate bin frequency")
	// ErrBinCount is returned when a table does not have the bank's fixed size.
	ErrBinCount = errors.New("analysis: wrong number of bins")
)

// Bank table parameters.
const (
	// RhythmBaseHz is the lowest Rhythm bin (A1). Bins are spaced a quarter
	// octave apart, so 24 bins span six octaves (55 Hz to ~2960 Hz).
	RhythmBaseHz        = 55.0
	RhythmBinsPerOctave = 4
	RhythmMinWindow     = 128
	RhythmMaxWindow     = 1024

	// HarmonyBaseMIDI is the MIDI note of the lowest Harmony bin (A1, 55 Hz).
	// 64 semitones take the bank to MIDI 96 (C7, ~2093 Hz).
	HarmonyBaseMIDI  = 33
	HarmonyMinWindow = 256
	HarmonyMaxWindow = MaxWindowLength

	// windowQuantum rounds window lengths up so neighbouring bins share tables.
	windowQuantum = 32
)

// BinSpec is the immutable description of one Goertzel analysis bin.
type BinSpec struct {
	FrequencyHz  float64 // Target frequency.
	WindowLength int     // Samples per analysis window (N).
	Coefficient  float64 // Goertzel coefficient 2*cos(2*pi*f/fs).
}

// NewBinSpec validates a frequency/window pair and precomputes its Goertzel
// coefficient.
func NewBinSpec(frequencyHz float64, windowLength int) (BinSpec, error) {
	if frequencyHz <= 0 || frequencyHz >= SampleRate/2 || math.IsNaN(frequencyHz) {
		return BinSpec{}, fmt.Errorf("%w: %v Hz", ErrFrequencyRange, frequencyHz)
	}
	if windowLength < 2 {
		return BinSpec{}, fmt.Errorf("%w: got %d", ErrWindowLength, windowLength)
	}
	return BinSpec{
		FrequencyHz:  frequencyHz,
		WindowLength: windowLength,
		Coefficient:  2 * math.Cos(2*math.Pi*frequencyHz/SampleRate),
	}, nil
}

// MIDIToHz converts a MIDI note number to frequency (A4 = 69 = 440 Hz).
func MIDIToHz(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

// ConstantQLength returns the window length giving a main lobe about as wide
// as the bin's bandwidth (bandwidth = frequency * ratio), rounded up to the
// window quantum and clamped to [minN, maxN].
func ConstantQLength(frequencyHz, ratio float64, minN, maxN int) int {
	n := int(math.Ceil(SampleRate / (frequencyHz * ratio)))
	n = (n + windowQuantum - 1) / windowQuantum * windowQuantum
	return max(minN, min(maxN, n))
}

// RhythmSpecs returns the default 24-bin Rhythm table: quarter-octave bins
// from 55 Hz with windows clamped to [128, 1024] so beat energy keeps a short
// time constant.
func RhythmSpecs() []BinSpec {
	ratio := math.Pow(2, 1.0/(2*RhythmBinsPerOctave)) - math.Pow(2, -1.0/(2*RhythmBinsPerOctave))
	specs := make([]BinSpec, RhythmBins)
	for i := range specs {
		f := RhythmBaseHz * math.Pow(2, float64(i)/RhythmBinsPerOctave)
		n := ConstantQLength(f, ratio, RhythmMinWindow, RhythmMaxWindow)
		specs[i], _ = NewBinSpec(f, n) // Table values are in range by construction.
	}
	return specs
}

// HarmonySpecs returns the default 64-bin Harmony table, one bin per
// semitone from MIDI 33, windows clamped to [256, 2048].
func HarmonySpecs() []BinSpec {
	ratio := math.Pow(2, 1.0/24) - math.Pow(2, -1.0/24)
	specs := make([]BinSpec, HarmonyBins)
	for i := range specs {
		f := MIDIToHz(HarmonyBaseMIDI + i)
		n := ConstantQLength(f, ratio, HarmonyMinWindow, HarmonyMaxWindow)
		specs[i], _ = NewBinSpec(f, n)
	}
	return specs
}

// ValidateSpecs checks a bin table against its bank: exact bin count, valid
// frequencies, window lengths in [2, maxLength] and no duplicate frequencies.
func ValidateSpecs(specs []BinSpec, want, maxLength int) error {
	if len(specs) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrBinCount, len(specs), want)
	}
	seen := make(map[float64]int, len(specs))
	for i, s := range specs {
		if s.FrequencyHz <= 0 || s.FrequencyHz >= SampleRate/2 || math.IsNaN(s.FrequencyHz) {
			return fmt.Errorf("bin %d: %w: %v Hz", i, ErrFrequencyRange, s.FrequencyHz)
		}
		if s.WindowLength < 2 {
			return fmt.Errorf("bin %d: %w: got %d", i, ErrWindowLength, s.WindowLength)
		}
		if s.WindowLength > maxLength {
			return fmt.Errorf("bin %d: %w: %d > %d", i, ErrWindowTooLong, s.WindowLength, maxLength)
		}
		if j, ok := seen[s.FrequencyHz]; ok {
			return fmt.Errorf("bins %d and %d: %w: %v Hz", j, i, ErrDuplicateBin, s.FrequencyHz)
		}
		seen[s.FrequencyHz] = i
	}
	return nil
}

// windowLengths collects the window length of every spec.
func windowLengths(specs ...[]BinSpec) []int {
	var out []int
	for _, table := range specs {
		for _, s := range table {
			out = append(out, s.WindowLength)
		}
	}
	return out
}
