// SPDX-License-Identifier: MIT
package audio

import "math"

// ClipDetector flags buffers whose peak reaches a fraction of 16-bit full
// scale. The zero value flags every buffer.
type ClipDetector struct {
	threshold int32 // Absolute amplitude threshold (0-32767)
}

// NewClipDetector returns a detector with the given threshold ratio.
func NewClipDetector(ratio float64) ClipDetector {
	var c ClipDetector
	c.SetThreshold(ratio)
	return c
}

// SetThreshold adjusts the clipping threshold.
// The value is in the range of 0.0-1.0 of full scale.
func (c *ClipDetector) SetThreshold(ratio float64) {
	if ratio < 0.0 {
		ratio = 0.0
	}
	if ratio > 1.0 {
		ratio = 1.0
	}

	c.threshold = int32(math.Round(ratio * math.MaxInt16))
}

// Threshold returns the current threshold as a ratio of full scale.
func (c *ClipDetector) Threshold() float64 {
	return float64(c.threshold) / math.MaxInt16
}

// Detect reports whether the peak of samples reaches the threshold.
func (c *ClipDetector) Detect(samples []int16) bool {
	return Peak(samples) >= c.threshold
}

// Peak returns the largest absolute sample value. -32768 yields 32768.
// Performance Critical (Hot Path):
// - No allocations
// - Branchless absolute value and maximum
func Peak(samples []int16) int32 {
	var peak int32
	for _, s := range samples {
		sample := int32(s)
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - peak
		peak += diff &^ (diff >> 31)
	}
	return peak
}
