package config

import (
	"time"

	"ledaudio/internal/analysis"
	"ledaudio/internal/frontend"
	applog "ledaudio/internal/log"
)

// FrontEndConfig converts the pipeline section into a validated
// frontend.Config. Settings the file does not expose keep their defaults.
func (c *Config) FrontEndConfig() (frontend.Config, error) {
	fc := frontend.DefaultConfig()

	window, err := analysis.ParseWindowFunc(c.Pipeline.Window)
	if err != nil {
		return frontend.Config{}, &frontend.ConfigError{Field: "Window", Err: err}
	}
	fc.Window = window
	fc.NoiseFloorDecay = c.Pipeline.NoiseFloorDecay
	fc.NoiseFloorMargin = c.Pipeline.NoiseFloorMargin
	fc.NoveltyCompress = c.Pipeline.NoveltyCompress
	fc.SilenceThreshold = c.Pipeline.SilenceThreshold
	fc.StabilityDepth = c.Pipeline.StabilityDepth
	fc.SkipHarmonyOnOverrun = c.Pipeline.SkipHarmonyOnOverrun

	// The Harmony AGC hold is counted in updates, so it follows the cadence.
	fc.HarmonyTickDiv = c.Pipeline.HarmonyTickDiv
	fc.HarmonyAGC = analysis.DefaultHarmonyAGC(c.Pipeline.HarmonyTickDiv)

	fc.Tempo.MinBPM = c.Pipeline.Tempo.MinBPM
	fc.Tempo.SpacingBPM = c.Pipeline.Tempo.SpacingBPM
	fc.Tempo.Bins = c.Pipeline.Tempo.Bins
	fc.Tempo.BlendVU = c.Pipeline.Tempo.BlendVU
	fc.Tempo.LockThreshold = c.Pipeline.Tempo.LockThreshold

	if err := fc.Validate(); err != nil {
		return frontend.Config{}, err
	}
	return fc, nil
}

// Level returns the effective log level. Debug forces LevelDebug.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}

// HopBudget returns the wall time one hop may take before it is reported
// as an overrun.
func (c *Config) HopBudget() time.Duration {
	hop := time.Duration(analysis.HopSize) * time.Second / analysis.SampleRate
	return time.Duration(float64(hop) * c.Audio.BudgetFraction)
}

// MaxRecordSamples returns the recording limit in samples, 0 for unlimited.
func (c *Config) MaxRecordSamples() uint64 {
	return uint64(c.Recording.MaxDuration) * analysis.SampleRate
}
