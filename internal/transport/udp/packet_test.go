// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"testing"

	"ledaudio/internal/analysis"
	"ledaudio/internal/frontend"
)

func sampleFrame() frontend.Frame {
	f := frontend.Frame{
		HopIndex:        1000,
		TSamples:        1001 * analysis.HopSize,
		IsSilence:       false,
		IsClipping:      true,
		HarmonyValid:    true,
		TempoLocked:     true,
		BeatTick:        true,
		RhythmEnergy:    0.25,
		RhythmNovelty:   0.125,
		KeyClarity:      0.4,
		ChromaStability: 0.9,
		BPM:             124,
		BeatPhase:       0.5,
		TempoConfidence: 0.7,
		RhythmLevel:     analysis.LevelLoud,
		HarmonyLevel:    analysis.LevelSilent,
	}
	f.TMicros = f.TSamples * 1_000_000 / analysis.SampleRate
	for i := range f.RhythmBins {
		f.RhythmBins[i] = float32(i) / analysis.RhythmBins
	}
	for i := range f.HarmonyBins {
		f.HarmonyBins[i] = 1 - float32(i)/analysis.HarmonyBins
	}
	f.Chroma12[0], f.Chroma12[4], f.Chroma12[7] = 1, 0.8, 0.6
	return f
}

func TestAppendFrameLayout(t *testing.T) {
	f := sampleFrame()
	b := AppendFrame(nil, 77, &f)

	if len(b) != PacketSize {
		t.Fatalf("packet is %d bytes, want %d", len(b), PacketSize)
	}
	if seq := binary.BigEndian.Uint32(b); seq != 77 {
		t.Errorf("sequence %d, want 77", seq)
	}
	if ts := binary.BigEndian.Uint64(b[4:]); ts != f.TSamples {
		t.Errorf("sample time %d, want %d", ts, f.TSamples)
	}
	flags := binary.BigEndian.Uint16(b[20:])
	want := FlagClipping | FlagHarmonyValid | FlagTempoLocked | FlagBeatTick
	if flags != want {
		t.Errorf("flags %06b, want %06b", flags, want)
	}
	if b[22] != byte(analysis.LevelLoud)<<4|byte(analysis.LevelSilent) {
		t.Errorf("levels byte %08b", b[22])
	}
	if n := binary.BigEndian.Uint16(b[headerSize:]); n != analysis.RhythmBins {
		t.Errorf("rhythm count %d, want %d", n, analysis.RhythmBins)
	}
}

func TestDecodeFrame(t *testing.T) {
	f := sampleFrame()
	b := AppendFrame(nil, 3, &f)

	seq, got, err := DecodeFrame(b)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if seq != 3 {
		t.Errorf("sequence %d, want 3", seq)
	}
	if got != f {
		t.Errorf("decoded frame differs:\n got %+v\nwant %+v", got, f)
	}
}

func TestDecodeFrameMalformed(t *testing.T) {
	f := sampleFrame()
	good := AppendFrame(nil, 1, &f)

	badCount := append([]byte(nil), good...)
	binary.BigEndian.PutUint16(badCount[headerSize:], 23)

	tests := []struct {
		name   string
		packet []byte
	}{
		{"Empty", nil},
		{"Header only", good[:headerSize]},
		{"Truncated payload", good[:len(good)-1]},
		{"Trailing bytes", append(append([]byte(nil), good...), 0)},
		{"Wrong count", badCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeFrame(tt.packet); !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestAppendFrameNoAllocs(t *testing.T) {
	f := sampleFrame()
	buf := make([]byte, 0, PacketSize)
	allocs := testing.AllocsPerRun(100, func() {
		buf = AppendFrame(buf[:0], 1, &f)
	})
	if allocs > 0 {
		t.Errorf("AppendFrame allocated: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkAppendFrame(b *testing.B) {
	f := sampleFrame()
	buf := make([]byte, 0, PacketSize)

	b.ReportAllocs()
	for b.Loop() {
		buf = AppendFrame(buf[:0], 1, &f)
	}
}
