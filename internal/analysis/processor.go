// SPDX-License-Identifier: MIT
package analysis

// Fixed stream geometry. The pipeline does not support other sample rates;
// every table and time constant below is derived from these values.
const (
	SampleRate      = 16000 // Input sample rate (Hz).
	HopSize         = 128   // New samples per hop (8 ms).
	RhythmBins      = 24    // Bins in the Rhythm bank.
	HarmonyBins     = 64    // Bins in the Harmony bank (one per semitone).
	PitchClasses    = 12    // Chroma vector length.
	MaxWindowLength = 2048  // Largest Goertzel window any bank may request.

	// HopSeconds is the time between two hops.
	HopSeconds = float64(HopSize) / SampleRate
	// HopRate is the number of hops per second (125 Hz).
	HopRate = float64(SampleRate) / HopSize
)

// BankInfo describes a fixed set of analysis bins. It decouples consumers
// (frame labelling, the monitor UI) from the concrete bank implementation.
type BankInfo interface {
	Name() string              // Name returns the bank name ("rhythm", "harmony").
	Len() int                  // Len returns the number of bins.
	Frequency(bin int) float64 // Frequency returns the centre frequency (Hz) of a bin.
	WindowLength(bin int) int  // WindowLength returns the Goertzel window length of a bin.
}

// MagnitudeStage is implemented by per-bin stages that map one magnitude
// vector onto another of the same length (noise floor subtraction, AGC). The
// caller owns both slices; implementations must not retain them.
type MagnitudeStage interface {
	Process(in, out []float64)
}
