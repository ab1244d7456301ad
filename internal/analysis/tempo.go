// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrInvalidTempo is returned for a tempo configuration that cannot run.
var ErrInvalidTempo = errors.New("analysis: invalid tempo configuration")

// TempoConfig tunes the resonator bank. The default is the canonical bank:
// 96 bins from 60 to 155 BPM at 1 BPM spacing.
type TempoConfig struct {
	MinBPM     float64 // Target tempo of bin 0.
	SpacingBPM float64 // Distance between neighbouring bins.
	Bins       int     // Number of resonators.

	// Leaky-integrator decay per hop of the ReferenceBPM resonator. Every
	// other resonator forgets the same amount per beat of its own tempo.
	Decay        float64
	SilentDecay  float64 // Decay per hop while silence is detected, scaled the same way.
	ReferenceBPM float64

	DCBlockSeconds   float64 // Time constant of the running mean removed from the input.
	WinnerHysteresis float64 // A challenger must beat the winner by this fraction.

	SilenceWindow      int     // Novelty samples kept by the silence detector.
	SilenceRange       float64 // max-min below this over the window means silence.
	SilenceSuppression float64 // Fraction of input removed during silence.

	BlendVU  bool    // Blend the positive VU derivative into the input.
	VUWeight float64 // Weight of the VU derivative when blending.

	AutorangeDecay   float64 // Per-hop decay of the tracked bank maximum.
	PeriodicityFloor float64 // Winner power/energy ratio mapped to zero confidence.
	PeriodicityFull  float64 // Ratio mapped to full confidence.
	LockThreshold    float64 // Confidence required for lock.
	DebounceFraction float64 // Minimum tick spacing as a fraction of the beat period.
}

// DefaultTempoConfig returns the canonical 96-bin configuration.
func DefaultTempoConfig() TempoConfig {
	return TempoConfig{
		MinBPM:             60,
		SpacingBPM:         1,
		Bins:               96,
		Decay:              0.995,
		SilentDecay:        0.95,
		ReferenceBPM:       120,
		DCBlockSeconds:     2,
		WinnerHysteresis:   0.1,
		SilenceWindow:      128,
		SilenceRange:       1e-4,
		SilenceSuppression: 0.9,
		BlendVU:            true,
		VUWeight:           0.5,
		AutorangeDecay:     0.999,
		PeriodicityFloor:   3,
		PeriodicityFull:    8,
		LockThreshold:      0.3,
		DebounceFraction:   0.6,
	}
}

// MaxBPM returns the target tempo of the last bin.
func (c TempoConfig) MaxBPM() float64 {
	return c.MinBPM + float64(c.Bins-1)*c.SpacingBPM
}

// Validate reports the first invalid field.
func (c TempoConfig) Validate() error {
	switch {
	case c.Bins < 1:
		return fmt.Errorf("%w: need at least one bin, got %d", ErrInvalidTempo, c.Bins)
	case c.MinBPM <= 0 || c.SpacingBPM <= 0:
		return fmt.Errorf("%w: bpm range %v+%v invalid", ErrInvalidTempo, c.MinBPM, c.SpacingBPM)
	case c.MaxBPM()/60 >= HopRate/2:
		return fmt.Errorf("%w: %v BPM is above the hop-rate Nyquist", ErrInvalidTempo, c.MaxBPM())
	case c.Decay <= 0 || c.Decay >= 1 || c.SilentDecay <= 0 || c.SilentDecay >= 1:
		return fmt.Errorf("%w: decays %v/%v not in (0, 1)", ErrInvalidTempo, c.Decay, c.SilentDecay)
	case c.ReferenceBPM <= 0:
		return fmt.Errorf("%w: reference tempo %v not positive", ErrInvalidTempo, c.ReferenceBPM)
	case c.DCBlockSeconds < HopSeconds:
		return fmt.Errorf("%w: dc block time constant %vs shorter than a hop", ErrInvalidTempo, c.DCBlockSeconds)
	case c.WinnerHysteresis < 0:
		return fmt.Errorf("%w: winner hysteresis %v negative", ErrInvalidTempo, c.WinnerHysteresis)
	case c.PeriodicityFloor < 0 || c.PeriodicityFull <= c.PeriodicityFloor:
		return fmt.Errorf("%w: periodicity range [%v, %v] empty", ErrInvalidTempo, c.PeriodicityFloor, c.PeriodicityFull)
	case c.SilenceWindow < 2:
		return fmt.Errorf("%w: silence window %d too short", ErrInvalidTempo, c.SilenceWindow)
	case c.SilenceSuppression < 0 || c.SilenceSuppression > 1:
		return fmt.Errorf("%w: silence suppression %v not in [0, 1]", ErrInvalidTempo, c.SilenceSuppression)
	case c.VUWeight < 0 || c.VUWeight > 1:
		return fmt.Errorf("%w: vu weight %v not in [0, 1]", ErrInvalidTempo, c.VUWeight)
	case c.AutorangeDecay <= 0 || c.AutorangeDecay > 1:
		return fmt.Errorf("%w: autorange decay %v not in (0, 1]", ErrInvalidTempo, c.AutorangeDecay)
	case c.LockThreshold < 0 || c.LockThreshold > 1:
		return fmt.Errorf("%w: lock threshold %v not in [0, 1]", ErrInvalidTempo, c.LockThreshold)
	case c.DebounceFraction < 0 || c.DebounceFraction >= 1:
		return fmt.Errorf("%w: debounce fraction %v not in [0, 1)", ErrInvalidTempo, c.DebounceFraction)
	}
	return nil
}

// TempoBin is one resonator of the bank.
type TempoBin struct {
	TargetBPM     float64
	Coefficient   float64 // Goertzel coefficient 2*cos(w) at the hop rate.
	Phase         float64 // Oscillator phase in [-pi, pi).
	SineAccum     float64
	CosineAccum   float64
	MagnitudeRaw  float64
	MagnitudeNorm float64 // (raw/max)^4 against the current bank maximum.

	step   float64 // Phase advance per hop (w).
	sinW   float64
	re, im float64 // Unit phasor (cos Phase, sin Phase).

	decay, silentDecay float64
	energy             float64 // Leaky input energy on the same time constant as the accumulators.
}

// TempoOutput is the per-hop result of the tracker.
type TempoOutput struct {
	BPM        float64 // Target tempo of the winning bin.
	Phase      float64 // Beat phase mapped [-pi, pi] -> [0, 1]; the beat is at 0.5.
	Confidence float64 // [0, 1].
	Locked     bool    // Confidence above threshold and no silence.
	Tick       bool    // A beat started on this hop. Only fires while locked.
	Silent     bool    // Silence detector state.
}

// TempoTracker is the second-stage Goertzel bank: a set of resonators run on
// the novelty curve, one per candidate tempo. Each hop every resonator
// rotates its phasor by its tempo, projects the input onto it and leaks the
// accumulators, so state persists across hops and is never reset mid-stream.
type TempoTracker struct {
	cfg  TempoConfig
	bins []TempoBin
	norm []float64 // Scratch for quartic magnitudes.

	silence    []float64 // Rolling novelty history for the silence detector.
	silencePos int

	prevVU      float64
	mean        float64 // Running mean removed from the input.
	meanAlpha   float64
	autorange   float64
	winner      int
	prevPhase   float64
	lastTick    uint64
	hasTicked   bool
	periodScale float64 // Samples per beat at 1 BPM (60*fs).
}

// NewTempoTracker builds the resonator bank.
func NewTempoTracker(cfg TempoConfig) (*TempoTracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &TempoTracker{
		cfg:         cfg,
		bins:        make([]TempoBin, cfg.Bins),
		norm:        make([]float64, cfg.Bins),
		silence:     make([]float64, cfg.SilenceWindow),
		meanAlpha:   HopSeconds / cfg.DCBlockSeconds,
		periodScale: 60 * SampleRate,
	}
	for i := range t.bins {
		bpm := cfg.MinBPM + float64(i)*cfg.SpacingBPM
		w := 2 * math.Pi * (bpm / 60) * HopSeconds
		scale := bpm / cfg.ReferenceBPM
		t.bins[i] = TempoBin{
			TargetBPM:   bpm,
			Coefficient: 2 * math.Cos(w),
			step:        w,
			sinW:        math.Sin(w),
			decay:       math.Pow(cfg.Decay, scale),
			silentDecay: math.Pow(cfg.SilentDecay, scale),
		}
	}
	t.Reset()
	return t, nil
}

// Update advances the bank by one hop. novelty is the onset strength of the
// hop, vu its loudness (RMS of the rhythm bins) and tSamples the stream
// position used to debounce ticks.
func (t *TempoTracker) Update(novelty, vu float64, tSamples uint64) TempoOutput {
	// --- 1. Input conditioning ---
	input := novelty
	if t.cfg.BlendVU {
		vuDelta := max(0, vu-t.prevVU)
		input = (1-t.cfg.VUWeight)*novelty + t.cfg.VUWeight*vuDelta
	}
	t.prevVU = vu

	// Rectified novelty never settles at zero: remove its running mean.
	t.mean += t.meanAlpha * (input - t.mean)
	input -= t.mean

	silent := t.detectSilence(novelty)
	if silent {
		input *= 1 - t.cfg.SilenceSuppression
	}

	// --- 2. Resonators ---
	maxRaw := 0.0
	best := t.winner
	for i := range t.bins {
		b := &t.bins[i]
		decay := b.decay
		if silent {
			decay = b.silentDecay
		}

		// Rotate the phasor by w; cos(w) is half the Goertzel coefficient.
		cosW := 0.5 * b.Coefficient
		re := b.re*cosW - b.im*b.sinW
		im := b.re*b.sinW + b.im*cosW
		k := 0.5 * (3 - (re*re + im*im)) // First-order renormalisation.
		b.re, b.im = re*k, im*k

		b.Phase += b.step
		if b.Phase >= math.Pi {
			b.Phase -= 2 * math.Pi
		}

		b.SineAccum = decay*b.SineAccum + input*b.im
		b.CosineAccum = decay*b.CosineAccum + input*b.re
		b.energy = decay*decay*b.energy + input*input
		b.MagnitudeRaw = math.Hypot(b.SineAccum, b.CosineAccum)
		if b.MagnitudeRaw > maxRaw {
			maxRaw = b.MagnitudeRaw
			best = i
		}
	}
	if maxRaw > (1+t.cfg.WinnerHysteresis)*t.bins[t.winner].MagnitudeRaw {
		t.winner = best
	}
	winner := t.winner

	// --- 3. Quartic normalisation and confidence ---
	t.autorange = max(maxRaw, t.autorange*t.cfg.AutorangeDecay)
	confidence := 0.0
	if maxRaw > 0 {
		inv := 1 / maxRaw
		for i := range t.bins {
			r := t.bins[i].MagnitudeRaw * inv
			r *= r
			t.bins[i].MagnitudeNorm = r * r
			t.norm[i] = r * r
		}
		presence := t.bins[winner].MagnitudeRaw / t.autorange
		contrast := 1 - stat.Mean(t.norm, nil)
		confidence = clamp(presence*contrast*t.periodicity(winner), 0, 1)
	} else {
		for i := range t.bins {
			t.bins[i].MagnitudeNorm = 0
		}
	}
	locked := !silent && confidence >= t.cfg.LockThreshold

	// --- 4. Beat phase and tick ---
	w := &t.bins[winner]
	beat := wrapPhase(w.Phase - math.Atan2(w.SineAccum, w.CosineAccum))
	tick := false
	if locked && t.prevPhase < 0 && beat >= 0 && beat-t.prevPhase < math.Pi {
		minGap := uint64(t.cfg.DebounceFraction * t.periodScale / w.TargetBPM)
		if !t.hasTicked || tSamples-t.lastTick >= minGap {
			tick = true
			t.hasTicked = true
			t.lastTick = tSamples
		}
	}
	t.prevPhase = beat

	return TempoOutput{
		BPM:        w.TargetBPM,
		Phase:      (beat + math.Pi) / (2 * math.Pi),
		Confidence: confidence,
		Locked:     locked,
		Tick:       tick,
		Silent:     silent,
	}
}

// periodicity maps the winner's power against the input energy it has seen
// onto [0, 1]. A periodic input piles up in one resonator while noise spreads
// its energy over all of them, so the ratio stays near one for noise and
// grows with the number of beats the resonator remembers.
func (t *TempoTracker) periodicity(i int) float64 {
	b := &t.bins[i]
	if b.energy <= 0 {
		return 0
	}
	ratio := b.MagnitudeRaw * b.MagnitudeRaw / b.energy
	return clamp((ratio-t.cfg.PeriodicityFloor)/(t.cfg.PeriodicityFull-t.cfg.PeriodicityFloor), 0, 1)
}

// detectSilence pushes one novelty sample and reports whether the range of
// the rolling window is near zero.
func (t *TempoTracker) detectSilence(novelty float64) bool {
	t.silence[t.silencePos] = novelty
	t.silencePos++
	if t.silencePos == len(t.silence) {
		t.silencePos = 0
	}

	lo, hi := t.silence[0], t.silence[0]
	for _, v := range t.silence[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return hi-lo < t.cfg.SilenceRange
}

// Bin returns a copy of resonator i.
func (t *TempoTracker) Bin(i int) TempoBin { return t.bins[i] }

// Len returns the number of resonators.
func (t *TempoTracker) Len() int { return len(t.bins) }

// Winner returns the index of the current winning resonator.
func (t *TempoTracker) Winner() int { return t.winner }

// Reset clears every accumulator and rewinds the oscillators.
func (t *TempoTracker) Reset() {
	for i := range t.bins {
		b := &t.bins[i]
		b.Phase, b.re, b.im = 0, 1, 0
		b.SineAccum, b.CosineAccum = 0, 0
		b.MagnitudeRaw, b.MagnitudeNorm = 0, 0
		b.energy = 0
	}
	clear(t.silence)
	clear(t.norm)
	t.silencePos = 0
	t.prevVU = 0
	t.mean = 0
	t.autorange = 0
	t.winner = t.indexOf(120)
	t.prevPhase = 0
	t.lastTick = 0
	t.hasTicked = false
}

// indexOf returns the bin closest to bpm.
func (t *TempoTracker) indexOf(bpm float64) int {
	i := int(math.Round((bpm - t.cfg.MinBPM) / t.cfg.SpacingBPM))
	return max(0, min(len(t.bins)-1, i))
}

// wrapPhase maps any angle onto [-pi, pi).
func wrapPhase(p float64) float64 {
	p = math.Mod(p+math.Pi, 2*math.Pi)
	if p < 0 {
		p += 2 * math.Pi
	}
	return p - math.Pi
}
