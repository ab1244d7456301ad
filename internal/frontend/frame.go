// SPDX-License-Identifier: MIT
package frontend

import "ledaudio/internal/analysis"

// Chunk is one hop of captured audio.
type Chunk struct {
	Samples [analysis.HopSize]int16
	// N is the number of valid samples. Capture always delivers full hops;
	// a short final chunk from a file source is zero padded.
	N int
	// SampleCounterEnd is the stream index one past the last sample.
	SampleCounterEnd uint64
	// Clipping is set by the capture path when any sample hit full scale.
	Clipping bool
}

// Frame is the per-hop feature frame. It is a plain value with fixed arrays
// so a copy shares nothing with the FrontEnd or with earlier frames.
type Frame struct {
	HopIndex   uint64 `json:"hop_index"`
	TSamples   uint64 `json:"t_samples"`
	TMicros    uint64 `json:"t_us"`
	IsClipping bool   `json:"is_clipping"`
	IsSilence  bool   `json:"is_silence"`
	Overload   bool   `json:"overload"`

	RhythmBins    [analysis.RhythmBins]float32 `json:"rhythm_bins"`
	RhythmEnergy  float32                      `json:"rhythm_energy"`
	RhythmNovelty float32                      `json:"rhythm_novelty"`

	HarmonyBins     [analysis.HarmonyBins]float32  `json:"harmony_bins"`
	HarmonyValid    bool                           `json:"harmony_valid"`
	Chroma12        [analysis.PitchClasses]float32 `json:"chroma12"`
	KeyClarity      float32                        `json:"key_clarity"`
	ChromaStability float32                        `json:"chroma_stability"`

	BPM             float32 `json:"bpm"`
	BeatPhase       float32 `json:"beat_phase"`
	TempoConfidence float32 `json:"tempo_confidence"`
	TempoLocked     bool    `json:"tempo_locked"`
	BeatTick        bool    `json:"beat_tick"`

	// Loudness class of each AGC. HarmonyLevel holds the classifier state
	// from the last Harmony tick and is reported on every hop.
	RhythmLevel  analysis.Level `json:"rhythm_level"`
	HarmonyLevel analysis.Level `json:"harmony_level"`
}

// Seconds returns the frame time in seconds.
func (f *Frame) Seconds() float64 {
	return float64(f.TSamples) / analysis.SampleRate
}
