package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"gonum.org/v1/gonum/stat"

	"ledaudio/internal/audio"
	"ledaudio/internal/config"
	"ledaudio/internal/frontend"
)

// Summary condenses a replayed file.
type Summary struct {
	Hops          int     `json:"hops"`
	Seconds       float64 `json:"seconds"`
	MeanEnergy    float64 `json:"mean_energy"`
	EnergyStdDev  float64 `json:"energy_stddev"`
	PeakNovelty   float64 `json:"peak_novelty"`
	DominantBPM   float64 `json:"dominant_bpm"`
	LockRatio     float64 `json:"lock_ratio"`
	BeatTicks     int     `json:"beat_ticks"`
	HarmonyFrames int     `json:"harmony_frames"`
	MeanClarity   float64 `json:"mean_key_clarity"`
	ClippedFrames int     `json:"clipped_frames"`
	SilentFrames  int     `json:"silent_frames"`
}

// summarizer accumulates frames for a Summary.
type summarizer struct {
	energy    []float64
	lockedBPM []float64
	activeBPM []float64
	clarity   []float64
	seconds   float64
	novelty   float64
	locked    int
	ticks     int
	clipped   int
	silent    int
}

func (s *summarizer) add(f *frontend.Frame) {
	s.energy = append(s.energy, float64(f.RhythmEnergy))
	s.novelty = max(s.novelty, float64(f.RhythmNovelty))
	s.seconds = f.Seconds()

	if f.TempoLocked {
		s.locked++
		s.lockedBPM = append(s.lockedBPM, float64(f.BPM))
	}
	if !f.IsSilence {
		s.activeBPM = append(s.activeBPM, float64(f.BPM))
	}
	if f.BeatTick {
		s.ticks++
	}
	if f.HarmonyValid {
		s.clarity = append(s.clarity, float64(f.KeyClarity))
	}
	if f.IsClipping {
		s.clipped++
	}
	if f.IsSilence {
		s.silent++
	}
}

func (s *summarizer) Summary() Summary {
	sum := Summary{
		Hops:          len(s.energy),
		Seconds:       s.seconds,
		PeakNovelty:   s.novelty,
		BeatTicks:     s.ticks,
		HarmonyFrames: len(s.clarity),
		ClippedFrames: s.clipped,
		SilentFrames:  s.silent,
	}
	if sum.Hops == 0 {
		return sum
	}
	sum.MeanEnergy, sum.EnergyStdDev = stat.MeanStdDev(s.energy, nil)
	sum.LockRatio = float64(s.locked) / float64(sum.Hops)
	if len(s.clarity) > 0 {
		sum.MeanClarity = stat.Mean(s.clarity, nil)
	}

	// Prefer the tempo the tracker held while locked.
	switch {
	case len(s.lockedBPM) > 0:
		sum.DominantBPM, _ = stat.Mode(s.lockedBPM, nil)
	case len(s.activeBPM) > 0:
		sum.DominantBPM, _ = stat.Mode(s.activeBPM, nil)
	}
	return sum
}

func (s Summary) write(w io.Writer) {
	fmt.Fprintf(w, "Duration:       %.2fs (%d hops)\n", s.Seconds, s.Hops)
	fmt.Fprintf(w, "Rhythm energy:  mean %.4f, stddev %.4f\n", s.MeanEnergy, s.EnergyStdDev)
	fmt.Fprintf(w, "Peak novelty:   %.4f\n", s.PeakNovelty)
	fmt.Fprintf(w, "Tempo:          %.0f BPM, locked %.1f%% of the time, %d beats\n",
		s.DominantBPM, 100*s.LockRatio, s.BeatTicks)
	fmt.Fprintf(w, "Key clarity:    %.3f over %d harmony frames\n", s.MeanClarity, s.HarmonyFrames)
	fmt.Fprintf(w, "Clipped frames: %d\n", s.ClippedFrames)
	fmt.Fprintf(w, "Silent frames:  %d\n", s.SilentFrames)
}

// runAnalyze replays path through a fresh front end and writes a summary,
// or every n-th frame as a JSON line.
func runAnalyze(ctx context.Context, w io.Writer, cfg *config.Config, path string, opts *options) error {
	feCfg, err := cfg.FrontEndConfig()
	if err != nil {
		return err
	}
	fe, err := frontend.New(feCfg)
	if err != nil {
		return err
	}

	src, err := audio.OpenWAV(path, cfg.Audio.ClipThreshold)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	every := uint64(max(1, opts.every))
	enc := json.NewEncoder(w)
	var sum summarizer

	start := time.Now()
	hops, err := audio.Replay(ctx, src, fe, func(f *frontend.Frame) error {
		if opts.jsonLines {
			if f.HopIndex%every != 0 {
				return nil
			}
			return enc.Encode(f)
		}
		sum.add(f)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay of %s stopped after %d hops: %w", path, hops, err)
	}
	log.Debugf("replayed %d hops (%d channel(s)) in %v", hops, src.Channels(), time.Since(start))

	if !opts.jsonLines {
		fmt.Fprintf(w, "File:           %s\n", path)
		sum.Summary().write(w)
	}
	return nil
}
