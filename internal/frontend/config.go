// SPDX-License-Identifier: MIT
package frontend

import (
	"errors"
	"fmt"

	"ledaudio/internal/analysis"
)

// ErrInvalidConfig is matched by every error returned from Config.Validate
// and New.
var ErrInvalidConfig = errors.New("frontend: invalid configuration")

// ConfigError reports the configuration field that failed validation.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("frontend: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is makes every ConfigError match ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// Config is the complete, immutable configuration of the front end. It is
// read once by New; later changes have no effect on a running FrontEnd.
type Config struct {
	// Bin tables. Each must have exactly RhythmBins / HarmonyBins entries.
	RhythmSpecs  []analysis.BinSpec
	HarmonySpecs []analysis.BinSpec
	Window       analysis.WindowFunc

	NoiseFloorDecay  float64
	NoiseFloorMargin float64

	RhythmAGC  analysis.AGCConfig
	HarmonyAGC analysis.AGCConfig

	NoveltyCompress bool
	Tempo           analysis.TempoConfig

	// HarmonyTickDiv runs the Harmony chain on every n-th hop.
	HarmonyTickDiv int
	// StabilityDepth is the chroma history length.
	StabilityDepth int
	// SilenceThreshold is the RhythmEnergy below which a frame is silent.
	SilenceThreshold float64

	// SkipHarmonyOnOverrun enables the overload policy: after ReportOverrun
	// the next Harmony tick is skipped and its frame is flagged Overload.
	SkipHarmonyOnOverrun bool
}

// DefaultConfig returns the canonical pipeline configuration.
func DefaultConfig() Config {
	const tickDiv = 2
	return Config{
		RhythmSpecs:      analysis.RhythmSpecs(),
		HarmonySpecs:     analysis.HarmonySpecs(),
		Window:           analysis.Hamming,
		NoiseFloorDecay:  analysis.DefaultNoiseFloorDecay,
		NoiseFloorMargin: analysis.DefaultNoiseFloorMargin,
		RhythmAGC:        analysis.DefaultRhythmAGC(),
		HarmonyAGC:       analysis.DefaultHarmonyAGC(tickDiv),
		NoveltyCompress:  true,
		Tempo:            analysis.DefaultTempoConfig(),
		HarmonyTickDiv:   tickDiv,
		StabilityDepth:   analysis.DefaultStabilityDepth,
		SilenceThreshold: 0.01,
	}
}

// Validate checks every field and returns a *ConfigError for the first
// failure.
func (c Config) Validate() error {
	if err := analysis.ValidateSpecs(c.RhythmSpecs, analysis.RhythmBins, analysis.MaxWindowLength); err != nil {
		return &ConfigError{Field: "RhythmSpecs", Err: err}
	}
	if err := analysis.ValidateSpecs(c.HarmonySpecs, analysis.HarmonyBins, analysis.MaxWindowLength); err != nil {
		return &ConfigError{Field: "HarmonySpecs", Err: err}
	}
	if c.NoiseFloorDecay <= 0 || c.NoiseFloorDecay > 1 {
		return &ConfigError{Field: "NoiseFloorDecay", Err: fmt.Errorf("%v not in (0, 1]", c.NoiseFloorDecay)}
	}
	if c.NoiseFloorMargin < 0 {
		return &ConfigError{Field: "NoiseFloorMargin", Err: fmt.Errorf("%v must be >= 0", c.NoiseFloorMargin)}
	}
	if err := c.RhythmAGC.Validate(); err != nil {
		return &ConfigError{Field: "RhythmAGC", Err: err}
	}
	if err := c.HarmonyAGC.Validate(); err != nil {
		return &ConfigError{Field: "HarmonyAGC", Err: err}
	}
	if err := c.Tempo.Validate(); err != nil {
		return &ConfigError{Field: "Tempo", Err: err}
	}
	if c.HarmonyTickDiv < 1 {
		return &ConfigError{Field: "HarmonyTickDiv", Err: fmt.Errorf("%d must be >= 1", c.HarmonyTickDiv)}
	}
	if c.StabilityDepth < 1 {
		return &ConfigError{Field: "StabilityDepth", Err: analysis.ErrStabilityDepth}
	}
	if c.SilenceThreshold < 0 {
		return &ConfigError{Field: "SilenceThreshold", Err: fmt.Errorf("%v must be >= 0", c.SilenceThreshold)}
	}
	return nil
}
