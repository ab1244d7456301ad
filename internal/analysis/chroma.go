// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// DefaultStabilityDepth is the number of past chroma vectors compared against.
const DefaultStabilityDepth = 8

// ErrStabilityDepth is returned for a history depth below one.
var ErrStabilityDepth = errors.New("analysis: stability depth must be positive")

// Chroma folds a semitone-spaced harmony bank into the twelve pitch classes.
type Chroma struct {
	class []int // Pitch class of every harmony bin, C = 0.
	sum   [PitchClasses]float64
}

// NewChroma maps bins consecutive semitones starting at MIDI note firstMIDI.
func NewChroma(firstMIDI, bins int) *Chroma {
	c := &Chroma{class: make([]int, bins)}
	for k := range c.class {
		c.class[k] = ((firstMIDI+k)%PitchClasses + PitchClasses) % PitchClasses
	}
	return c
}

// Fold sums harmony into out, normalises out by its maximum and returns the
// key clarity (max/sum of the unnormalised classes). A silent input yields a
// zero vector and zero clarity.
func (c *Chroma) Fold(harmony []float64, out *[PitchClasses]float64) float64 {
	clear(c.sum[:])
	for k, v := range harmony[:min(len(harmony), len(c.class))] {
		c.sum[c.class[k]] += v
	}

	total := floats.Sum(c.sum[:])
	peak := floats.Max(c.sum[:])
	if total <= 0 || peak <= 0 {
		clear(out[:])
		return 0
	}
	for i, v := range c.sum {
		out[i] = v / peak
	}
	return peak / total
}

// PitchClass returns the pitch class a harmony bin folds into.
func (c *Chroma) PitchClass(bin int) int { return c.class[bin] }

// ChromaStability scores how steady the harmonic content is: the mean cosine
// similarity between the current chroma vector and the recent history.
type ChromaStability struct {
	history [][PitchClasses]float64
	next    int
	filled  int
}

// NewChromaStability keeps depth past vectors.
func NewChromaStability(depth int) (*ChromaStability, error) {
	if depth < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrStabilityDepth, depth)
	}
	return &ChromaStability{history: make([][PitchClasses]float64, depth)}, nil
}

// Update scores v against the history, then records it. The first call, and
// any call where v or a stored vector is all zero, contributes similarity 0.
func (s *ChromaStability) Update(v *[PitchClasses]float64) float64 {
	score := 0.0
	if s.filled > 0 {
		cur := v[:]
		curNorm := floats.Norm(cur, 2)
		sum := 0.0
		for i := range s.filled {
			h := s.history[i][:]
			hNorm := floats.Norm(h, 2)
			if curNorm == 0 || hNorm == 0 {
				continue
			}
			sum += floats.Dot(cur, h) / (curNorm * hNorm)
		}
		score = clamp(sum/float64(s.filled), 0, 1)
	}

	s.history[s.next] = *v
	s.next = (s.next + 1) % len(s.history)
	s.filled = min(s.filled+1, len(s.history))
	return score
}

// Reset drops the history.
func (s *ChromaStability) Reset() {
	clear(s.history)
	s.next, s.filled = 0, 0
}
