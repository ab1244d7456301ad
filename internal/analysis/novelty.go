// SPDX-License-Identifier: MIT
package analysis

import "math"

// Novelty computes half-wave rectified spectral flux over the Rhythm bins.
// Only rises in energy count: onsets carry the rhythm, decays do not.
type Novelty struct {
	prev     []float64
	compress bool
}

// NewNovelty creates a detector for bins magnitudes. With compress set the
// flux is square-root compressed.
func NewNovelty(bins int, compress bool) *Novelty {
	return &Novelty{
		prev:     make([]float64, bins),
		compress: compress,
	}
}

// Update returns the onset strength of cur against the previous call and
// stores cur as the new reference. The result is always >= 0.
func (n *Novelty) Update(cur []float64) float64 {
	if len(n.prev) == 0 {
		return 0
	}
	var flux float64
	for i, p := range n.prev {
		if d := cur[i] - p; d > 0 {
			flux += d
		}
		n.prev[i] = cur[i]
	}
	flux /= float64(len(n.prev))
	if n.compress {
		flux = math.Sqrt(flux)
	}
	return flux
}

// Reset forgets the previous snapshot.
func (n *Novelty) Reset() { clear(n.prev) }
