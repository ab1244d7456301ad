// SPDX-License-Identifier: MIT
package analysis

import "fmt"

// Noise floor defaults.
const (
	DefaultNoiseFloorDecay  = 0.999 // Per-update weight kept by the floor while recovering upward.
	DefaultNoiseFloorMargin = 1.5   // Floor multiple subtracted from each raw magnitude.
)

// NoiseFloor tracks a per-bin estimate of stationary noise as a minimum
// envelope: a raw value below the floor pulls it straight down, anything
// above lets it creep back up at (1-decay) per update. Upward steps are
// skipped while the input is clipping so saturated transients never raise
// the floor.
type NoiseFloor struct {
	floor  []float64
	decay  float64
	margin float64
}

// Compile-time check.
var _ MagnitudeStage = (*NoiseFloor)(nil)

// NewNoiseFloor creates a tracker for the given number of bins. decay must be
// in (0, 1] and margin non-negative.
func NewNoiseFloor(bins int, decay, margin float64) (*NoiseFloor, error) {
	if bins < 1 {
		return nil, fmt.Errorf("analysis: noise floor needs at least one bin, got %d", bins)
	}
	if decay <= 0 || decay > 1 {
		return nil, fmt.Errorf("analysis: noise floor decay must be in (0, 1], got %v", decay)
	}
	if margin < 0 {
		return nil, fmt.Errorf("analysis: noise floor margin must be >= 0, got %v", margin)
	}
	return &NoiseFloor{
		floor:  make([]float64, bins),
		decay:  decay,
		margin: margin,
	}, nil
}

// Update folds one hop of raw magnitudes into the floor.
func (n *NoiseFloor) Update(raw []float64, clipping bool) {
	for i := range n.floor {
		x := max(raw[i], 0)
		switch {
		case x < n.floor[i]:
			n.floor[i] = x
		case !clipping:
			n.floor[i] = n.decay*n.floor[i] + (1-n.decay)*x
		}
	}
}

// Subtract writes max(0, raw - floor*margin) into out.
func (n *NoiseFloor) Subtract(raw, out []float64) {
	for i, f := range n.floor {
		out[i] = max(0, raw[i]-f*n.margin)
	}
}

// Process implements MagnitudeStage as Subtract.
func (n *NoiseFloor) Process(in, out []float64) { n.Subtract(in, out) }

// Floor returns the current floor of a bin.
func (n *NoiseFloor) Floor(bin int) float64 { return n.floor[bin] }

// FloorsInto copies the floor of every bin into dst and returns the number of
// values copied.
func (n *NoiseFloor) FloorsInto(dst []float64) int { return copy(dst, n.floor) }

// Reset clears the floor to zero.
func (n *NoiseFloor) Reset() { clear(n.floor) }
