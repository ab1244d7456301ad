// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidAGC is returned for an AGC configuration that cannot run.
var ErrInvalidAGC = errors.New("analysis: invalid AGC configuration")

// Level is the loudness class reported by the AGC classifier.
type Level int

const (
	LevelSilent Level = iota
	LevelNormal
	LevelLoud
)

// String returns the upper-case name of the level.
func (l Level) String() string {
	switch l {
	case LevelSilent:
		return "SILENT"
	case LevelNormal:
		return "NORMAL"
	case LevelLoud:
		return "LOUD"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the level by name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name produced by MarshalText.
func (l *Level) UnmarshalText(text []byte) error {
	for c := LevelSilent; c <= LevelLoud; c++ {
		if string(text) == c.String() {
			*l = c
			return nil
		}
	}
	return fmt.Errorf("analysis: unknown level %q", text)
}

// AGCConfig tunes one AGC instance. Rates are per Process call.
type AGCConfig struct {
	AttackRate     float64 // Smoothing toward a rising peak (fast).
	ReleaseRate    float64 // Smoothing toward a falling peak (slow).
	FloorRate      float64 // Smoothing of the raw floor toward the mean input.
	FloorScale     float64 // Raw floor to scaled floor multiplier.
	FloorMin       float64 // Lower clamp of the scaled floor; must be > 0.
	FloorMax       float64 // Upper clamp of the scaled floor.
	DeadbandFactor float64 // Peak below floor*factor resets the reference to that value.

	SilentThreshold float64 // Smoothed peak below this classifies as SILENT.
	LoudThreshold   float64 // Smoothed peak above this classifies as LOUD.
	Hysteresis      float64 // Fraction a threshold must be re-crossed by to leave a state.
	HoldSeconds     float64 // Time a candidate level must persist before it is adopted.
	UpdatePeriod    float64 // Seconds between Process calls.
}

// DefaultRhythmAGC returns the Rhythm tuning: updated every hop, quick to
// follow transients.
func DefaultRhythmAGC() AGCConfig {
	return AGCConfig{
		AttackRate:      0.5,
		ReleaseRate:     0.005,
		FloorRate:       0.01,
		FloorScale:      1.0,
		FloorMin:        0.0005,
		FloorMax:        0.05,
		DeadbandFactor:  1.5,
		SilentThreshold: 0.002,
		LoudThreshold:   0.3,
		Hysteresis:      0.2,
		HoldSeconds:     1.5,
		UpdatePeriod:    HopSeconds,
	}
}

// DefaultHarmonyAGC returns the Harmony tuning for a bank updated every
// tickDiv hops. Pitch content moves slower, so attack and release are gentler.
func DefaultHarmonyAGC(tickDiv int) AGCConfig {
	return AGCConfig{
		AttackRate:      0.3,
		ReleaseRate:     0.002,
		FloorRate:       0.005,
		FloorScale:      1.0,
		FloorMin:        0.0005,
		FloorMax:        0.05,
		DeadbandFactor:  1.5,
		SilentThreshold: 0.002,
		LoudThreshold:   0.3,
		Hysteresis:      0.2,
		HoldSeconds:     1.5,
		UpdatePeriod:    HopSeconds * float64(max(tickDiv, 1)),
	}
}

// Validate reports the first invalid field.
func (c AGCConfig) Validate() error {
	inUnit := func(v float64) bool { return v > 0 && v <= 1 }
	switch {
	case !inUnit(c.AttackRate):
		return fmt.Errorf("%w: attack rate %v not in (0, 1]", ErrInvalidAGC, c.AttackRate)
	case !inUnit(c.ReleaseRate):
		return fmt.Errorf("%w: release rate %v not in (0, 1]", ErrInvalidAGC, c.ReleaseRate)
	case !inUnit(c.FloorRate):
		return fmt.Errorf("%w: floor rate %v not in (0, 1]", ErrInvalidAGC, c.FloorRate)
	case c.FloorScale <= 0:
		return fmt.Errorf("%w: floor scale %v must be positive", ErrInvalidAGC, c.FloorScale)
	case c.FloorMin <= 0 || c.FloorMax < c.FloorMin:
		return fmt.Errorf("%w: floor range [%v, %v] invalid", ErrInvalidAGC, c.FloorMin, c.FloorMax)
	case c.DeadbandFactor < 1:
		return fmt.Errorf("%w: deadband factor %v must be >= 1", ErrInvalidAGC, c.DeadbandFactor)
	case c.SilentThreshold < 0 || c.LoudThreshold <= c.SilentThreshold:
		return fmt.Errorf("%w: level thresholds %v/%v invalid", ErrInvalidAGC, c.SilentThreshold, c.LoudThreshold)
	case c.Hysteresis < 0 || c.Hysteresis >= 1:
		return fmt.Errorf("%w: hysteresis %v not in [0, 1)", ErrInvalidAGC, c.Hysteresis)
	case c.HoldSeconds < 0:
		return fmt.Errorf("%w: hold %v must be >= 0", ErrInvalidAGC, c.HoldSeconds)
	case c.UpdatePeriod <= 0:
		return fmt.Errorf("%w: update period %v must be positive", ErrInvalidAGC, c.UpdatePeriod)
	}
	return nil
}

// AGC normalises a magnitude vector to [0, 1] against a smoothed peak.
//
// The peak follows rises quickly and falls slowly so loud hits register at
// once without the output pumping afterwards. A scaled floor estimate sets a
// deadband: while the input peak stays under floor*deadband the reference is
// pinned to that value, so quiet input stays quiet instead of being blown up
// toward full scale.
type AGC struct {
	cfg       AGCConfig
	holdCalls int

	rawFloor float64
	floor    float64
	peak     float64
	ref      float64

	level          Level
	candidate      Level
	candidateCalls int
}

// Compile-time check.
var _ MagnitudeStage = (*AGC)(nil)

// NewAGC creates an AGC from a validated configuration.
func NewAGC(cfg AGCConfig) (*AGC, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &AGC{
		cfg:       cfg,
		holdCalls: int(math.Ceil(cfg.HoldSeconds / cfg.UpdatePeriod)),
	}
	a.Reset()
	return a, nil
}

// Process normalises in into out. Both slices must have the same non-zero
// length.
func (a *AGC) Process(in, out []float64) {
	if len(in) == 0 {
		return
	}

	// --- 1. Floor estimate ---
	mean := floats.Sum(in) / float64(len(in))
	a.rawFloor += a.cfg.FloorRate * (mean - a.rawFloor)
	a.floor = clamp(a.rawFloor*a.cfg.FloorScale, a.cfg.FloorMin, a.cfg.FloorMax)

	// --- 2. Smoothed peak with asymmetric attack/release ---
	peak := floats.Max(in)
	if peak > a.peak {
		a.peak += a.cfg.AttackRate * (peak - a.peak)
	} else {
		a.peak += a.cfg.ReleaseRate * (peak - a.peak)
	}

	// --- 3. Deadband ---
	deadband := a.floor * a.cfg.DeadbandFactor
	if peak < deadband {
		a.peak = deadband
	}
	a.ref = max(a.peak, deadband)

	// --- 4. Normalise ---
	inv := 1 / a.ref
	for i, v := range in {
		out[i] = clamp(v*inv, 0, 1)
	}

	a.classify()
}

// classify moves the level classifier one step. A new level must be the
// candidate for holdCalls consecutive calls before it becomes current.
func (a *AGC) classify() {
	silentEdge := a.cfg.SilentThreshold
	loudEdge := a.cfg.LoudThreshold
	switch a.level {
	case LevelSilent:
		silentEdge *= 1 + a.cfg.Hysteresis
	case LevelLoud:
		loudEdge *= 1 - a.cfg.Hysteresis
	}

	next := LevelNormal
	switch {
	case a.peak < silentEdge:
		next = LevelSilent
	case a.peak > loudEdge:
		next = LevelLoud
	}

	if next == a.level {
		a.candidate = a.level
		a.candidateCalls = 0
		return
	}
	if next != a.candidate {
		a.candidate = next
		a.candidateCalls = 0
	}
	a.candidateCalls++
	if a.candidateCalls >= a.holdCalls {
		a.level = next
		a.candidateCalls = 0
	}
}

// Level returns the current loudness class.
func (a *AGC) Level() Level { return a.level }

// Gain returns the current normalisation gain (1/reference).
func (a *AGC) Gain() float64 { return 1 / a.ref }

// Reference returns the value that maps to 1.0 on the output.
func (a *AGC) Reference() float64 { return a.ref }

// Floor returns the scaled floor estimate.
func (a *AGC) Floor() float64 { return a.floor }

// Reset returns the AGC to its start-up state.
func (a *AGC) Reset() {
	a.rawFloor = 0
	a.floor = a.cfg.FloorMin
	a.peak = a.floor * a.cfg.DeadbandFactor
	a.ref = a.peak
	a.level = LevelSilent
	a.candidate = LevelSilent
	a.candidateCalls = 0
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
