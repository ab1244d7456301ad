// SPDX-License-Identifier: MIT
package frontend

import (
	"math"
	"sync/atomic"

	"ledaudio/internal/analysis"
)

// ringMargin is extra history kept beyond the longest window and one hop.
const ringMargin = 64

// Stats are running counters of a FrontEnd. They may be read from any
// goroutine.
type Stats struct {
	Hops           uint64 // ProcessHop calls.
	HarmonyTicks   uint64 // Hops on which the Harmony chain ran.
	HarmonySkipped uint64 // Harmony ticks dropped by the overload policy.
	Overruns       uint64 // ReportOverrun calls.
	CounterResyncs uint64 // Chunks whose sample counter moved backwards.
}

// FrontEnd runs the feature-extraction pipeline one hop at a time.
//
// All tables and scratch buffers are allocated by New; ProcessHop performs no
// allocation, takes no lock and never blocks. Exactly one goroutine may call
// ProcessHop, ReportOverrun and Reset. Stats is safe from any goroutine.
type FrontEnd struct {
	cfg Config

	ring    *analysis.SampleRing
	rhythm  *analysis.BinBank
	harmony *analysis.BinBank

	rhythmFloor  *analysis.NoiseFloor
	harmonyFloor *analysis.NoiseFloor
	rhythmAGC    *analysis.AGC
	harmonyAGC   *analysis.AGC
	novelty      *analysis.Novelty
	tempo        *analysis.TempoTracker
	chroma       *analysis.Chroma
	stability    *analysis.ChromaStability

	// Scratch, reused every hop.
	rhythmRaw   []float64
	rhythmNorm  []float64
	harmonyRaw  []float64
	harmonyNorm []float64
	chroma12    [analysis.PitchClasses]float64

	hop            uint64
	overrunPending bool
	hops           atomic.Uint64
	harmonyTicks   atomic.Uint64
	harmonySkipped atomic.Uint64
	overruns       atomic.Uint64
	counterResyncs atomic.Uint64
}

// New validates cfg and builds every table and stage.
func New(cfg Config) (*FrontEnd, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	windows, err := analysis.NewWindowBank(cfg.Window, windowLengths(cfg), analysis.MaxWindowLength)
	if err != nil {
		return nil, &ConfigError{Field: "Window", Err: err}
	}
	rhythm, err := analysis.NewBinBank("rhythm", cfg.RhythmSpecs, windows)
	if err != nil {
		return nil, &ConfigError{Field: "RhythmSpecs", Err: err}
	}
	harmony, err := analysis.NewBinBank("harmony", cfg.HarmonySpecs, windows)
	if err != nil {
		return nil, &ConfigError{Field: "HarmonySpecs", Err: err}
	}

	longest := max(rhythm.MaxWindow(), harmony.MaxWindow())
	ring, err := analysis.NewSampleRing(longest + analysis.HopSize + ringMargin)
	if err != nil {
		return nil, &ConfigError{Field: "Window", Err: err}
	}

	fe := &FrontEnd{
		cfg:         cfg,
		ring:        ring,
		rhythm:      rhythm,
		harmony:     harmony,
		novelty:     analysis.NewNovelty(analysis.RhythmBins, cfg.NoveltyCompress),
		chroma:      analysis.NewChroma(analysis.HarmonyBaseMIDI, analysis.HarmonyBins),
		rhythmRaw:   make([]float64, analysis.RhythmBins),
		rhythmNorm:  make([]float64, analysis.RhythmBins),
		harmonyRaw:  make([]float64, analysis.HarmonyBins),
		harmonyNorm: make([]float64, analysis.HarmonyBins),
	}

	// ProcessHop relies on every window fitting the ring; check it once here.
	if err := rhythm.ProcessAll(ring, fe.rhythmRaw); err != nil {
		return nil, &ConfigError{Field: "RhythmSpecs", Err: err}
	}
	if err := harmony.ProcessAll(ring, fe.harmonyRaw); err != nil {
		return nil, &ConfigError{Field: "HarmonySpecs", Err: err}
	}

	if fe.rhythmFloor, err = analysis.NewNoiseFloor(analysis.RhythmBins, cfg.NoiseFloorDecay, cfg.NoiseFloorMargin); err != nil {
		return nil, &ConfigError{Field: "NoiseFloorDecay", Err: err}
	}
	if fe.harmonyFloor, err = analysis.NewNoiseFloor(analysis.HarmonyBins, cfg.NoiseFloorDecay, cfg.NoiseFloorMargin); err != nil {
		return nil, &ConfigError{Field: "NoiseFloorDecay", Err: err}
	}
	if fe.rhythmAGC, err = analysis.NewAGC(cfg.RhythmAGC); err != nil {
		return nil, &ConfigError{Field: "RhythmAGC", Err: err}
	}
	if fe.harmonyAGC, err = analysis.NewAGC(cfg.HarmonyAGC); err != nil {
		return nil, &ConfigError{Field: "HarmonyAGC", Err: err}
	}
	if fe.tempo, err = analysis.NewTempoTracker(cfg.Tempo); err != nil {
		return nil, &ConfigError{Field: "Tempo", Err: err}
	}
	if fe.stability, err = analysis.NewChromaStability(cfg.StabilityDepth); err != nil {
		return nil, &ConfigError{Field: "StabilityDepth", Err: err}
	}
	return fe, nil
}

func windowLengths(cfg Config) []int {
	lengths := make([]int, 0, len(cfg.RhythmSpecs)+len(cfg.HarmonySpecs))
	for _, s := range cfg.RhythmSpecs {
		lengths = append(lengths, s.WindowLength)
	}
	for _, s := range cfg.HarmonySpecs {
		lengths = append(lengths, s.WindowLength)
	}
	return lengths
}

// ProcessHop consumes one chunk and returns the feature frame for it.
// Performance Critical (Hot Path):
// - No allocations, no locks, bounded time
// - Time is derived from the sample counter only
func (fe *FrontEnd) ProcessHop(chunk Chunk) Frame {
	var frame Frame
	hop := fe.hop
	fe.hop++
	fe.hops.Add(1)

	// --- 1. Ring buffer ---
	n := max(0, min(chunk.N, analysis.HopSize))
	counter := chunk.SampleCounterEnd
	if err := fe.ring.Push(chunk.Samples[:n], counter); err != nil {
		// Counter went backwards: keep the samples and continue the
		// stream from where the ring is.
		// n <= HopSize is below the ring capacity and the counter moves
		// forward, so this Push cannot fail.
		counter = fe.ring.Counter() + uint64(n)
		_ = fe.ring.Push(chunk.Samples[:n], counter)
		fe.counterResyncs.Add(1)
	}

	frame.HopIndex = hop
	frame.TSamples = counter
	frame.TMicros = counter * 1_000_000 / analysis.SampleRate
	frame.IsClipping = chunk.Clipping

	// --- 2. Rhythm chain, every hop ---
	_ = fe.rhythm.ProcessAll(fe.ring, fe.rhythmRaw) // Window fit checked in New.
	fe.rhythmFloor.Update(fe.rhythmRaw, chunk.Clipping)
	fe.rhythmFloor.Subtract(fe.rhythmRaw, fe.rhythmNorm)
	fe.rhythmAGC.Process(fe.rhythmNorm, fe.rhythmNorm)
	novelty := fe.novelty.Update(fe.rhythmNorm)

	var sumSq float64
	for i, v := range fe.rhythmNorm {
		frame.RhythmBins[i] = float32(v)
		sumSq += v * v
	}
	energy := math.Sqrt(sumSq / float64(len(fe.rhythmNorm)))
	frame.RhythmEnergy = float32(energy)
	frame.RhythmNovelty = float32(novelty)
	frame.IsSilence = energy < fe.cfg.SilenceThreshold
	frame.RhythmLevel = fe.rhythmAGC.Level()

	// --- 3. Harmony chain, every HarmonyTickDiv-th hop ---
	if hop%uint64(fe.cfg.HarmonyTickDiv) == 0 {
		if fe.overrunPending && fe.cfg.SkipHarmonyOnOverrun {
			fe.overrunPending = false
			fe.harmonySkipped.Add(1)
			frame.Overload = true
		} else {
			fe.processHarmony(&frame, chunk.Clipping)
		}
	}
	frame.HarmonyLevel = fe.harmonyAGC.Level()

	// --- 4. Tempo ---
	t := fe.tempo.Update(novelty, energy, counter)
	frame.BPM = float32(t.BPM)
	frame.BeatPhase = float32(t.Phase)
	frame.TempoConfidence = float32(t.Confidence)
	frame.TempoLocked = t.Locked
	frame.BeatTick = t.Tick

	return frame
}

func (fe *FrontEnd) processHarmony(frame *Frame, clipping bool) {
	fe.harmonyTicks.Add(1)
	_ = fe.harmony.ProcessAll(fe.ring, fe.harmonyRaw) // Window fit checked in New.
	fe.harmonyFloor.Update(fe.harmonyRaw, clipping)
	fe.harmonyFloor.Subtract(fe.harmonyRaw, fe.harmonyNorm)
	fe.harmonyAGC.Process(fe.harmonyNorm, fe.harmonyNorm)

	clarity := fe.chroma.Fold(fe.harmonyNorm, &fe.chroma12)
	stability := fe.stability.Update(&fe.chroma12)

	for i, v := range fe.harmonyNorm {
		frame.HarmonyBins[i] = float32(v)
	}
	for i, v := range fe.chroma12 {
		frame.Chroma12[i] = float32(v)
	}
	frame.KeyClarity = float32(clarity)
	frame.ChromaStability = float32(stability)
	frame.HarmonyValid = true
}

// ReportOverrun records that the last hop exceeded its time budget. With
// SkipHarmonyOnOverrun set, the next Harmony tick is dropped.
func (fe *FrontEnd) ReportOverrun() {
	fe.overruns.Add(1)
	if fe.cfg.SkipHarmonyOnOverrun {
		fe.overrunPending = true
	}
}

// Stats returns a snapshot of the counters.
func (fe *FrontEnd) Stats() Stats {
	return Stats{
		Hops:           fe.hops.Load(),
		HarmonyTicks:   fe.harmonyTicks.Load(),
		HarmonySkipped: fe.harmonySkipped.Load(),
		Overruns:       fe.overruns.Load(),
		CounterResyncs: fe.counterResyncs.Load(),
	}
}

// Rhythm describes the Rhythm bank.
func (fe *FrontEnd) Rhythm() analysis.BankInfo { return fe.rhythm }

// Harmony describes the Harmony bank.
func (fe *FrontEnd) Harmony() analysis.BankInfo { return fe.harmony }

// Config returns the configuration the front end was built with.
func (fe *FrontEnd) Config() Config { return fe.cfg }

// Reset returns every adaptive stage to its start-up state. It is meant for
// offline replay and tests; a live stream must never be reset.
func (fe *FrontEnd) Reset() {
	fe.ring.Reset()
	fe.rhythmFloor.Reset()
	fe.harmonyFloor.Reset()
	fe.rhythmAGC.Reset()
	fe.harmonyAGC.Reset()
	fe.novelty.Reset()
	fe.tempo.Reset()
	fe.stability.Reset()
	fe.hop = 0
	fe.overrunPending = false
}
