// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"ledaudio/internal/analysis"
	"ledaudio/internal/frontend"
)

// writeWAV encodes interleaved samples into a PCM file under t.TempDir().
func writeWAV(t *testing.T, sampleRate, bitDepth, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

// readAll returns every sample of a 16 kHz file, downmixed to mono.
func readAll(t *testing.T, path string) []int16 {
	t.Helper()
	src, err := OpenWAV(path, 1)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	defer src.Close()

	var out []int16
	var chunk frontend.Chunk
	for {
		err := src.Next(&chunk)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, chunk.Samples[:chunk.N]...)
	}
}

func TestWAVSourceMono(t *testing.T) {
	data := make([]int, 300)
	for i := range data {
		data[i] = i*100 - 15000
	}
	src, err := OpenWAV(writeWAV(t, analysis.SampleRate, 16, 1, data), 0.99)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	defer src.Close()

	wantN := []int{128, 128, 44}
	var chunk frontend.Chunk
	var end uint64
	offset := 0
	for i, n := range wantN {
		if err := src.Next(&chunk); err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		end += uint64(n)
		if chunk.N != n || chunk.SampleCounterEnd != end {
			t.Fatalf("chunk %d: N=%d end=%d, want N=%d end=%d", i, chunk.N, chunk.SampleCounterEnd, n, end)
		}
		for j := range n {
			if int(chunk.Samples[j]) != data[offset+j] {
				t.Fatalf("chunk %d sample %d = %d, want %d", i, j, chunk.Samples[j], data[offset+j])
			}
		}
		offset += n
	}
	for j, s := range chunk.Samples[44:] {
		if s != 0 {
			t.Fatalf("tail sample %d not zeroed: %d", j+44, s)
		}
	}
	if err := src.Next(&chunk); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestWAVSourceConversion(t *testing.T) {
	tests := []struct {
		desc     string
		bitDepth int
		channels int
		frame    []int // One interleaved frame, repeated.
		want     int16
	}{
		{"16-bit stereo downmix", 16, 2, []int{3000, 1000}, 2000},
		{"16-bit stereo cancel", 16, 2, []int{-4000, 4000}, 0},
		{"24-bit mono", 24, 1, []int{256 * 1000}, 1000},
		{"24-bit negative", 24, 1, []int{-256 * 1000}, -1000},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			var data []int
			for range analysis.HopSize {
				data = append(data, tt.frame...)
			}
			src, err := OpenWAV(writeWAV(t, analysis.SampleRate, tt.bitDepth, tt.channels, data), 0.99)
			if err != nil {
				t.Fatalf("OpenWAV: %v", err)
			}
			defer src.Close()

			if src.Channels() != tt.channels {
				t.Errorf("expected %d channels, got %d", tt.channels, src.Channels())
			}
			var chunk frontend.Chunk
			if err := src.Next(&chunk); err != nil {
				t.Fatalf("Next: %v", err)
			}
			if chunk.N != analysis.HopSize {
				t.Fatalf("expected a full hop, got %d", chunk.N)
			}
			for i, s := range chunk.Samples {
				if s != tt.want {
					t.Fatalf("sample %d = %d, want %d", i, s, tt.want)
				}
			}
		})
	}
}

func TestWAVSourceClipping(t *testing.T) {
	data := make([]int, 2*analysis.HopSize)
	data[10] = math.MaxInt16
	src, err := OpenWAV(writeWAV(t, analysis.SampleRate, 16, 1, data), 0.99)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	defer src.Close()

	var chunk frontend.Chunk
	_ = src.Next(&chunk)
	if !chunk.Clipping {
		t.Error("first hop should be flagged as clipping")
	}
	_ = src.Next(&chunk)
	if chunk.Clipping {
		t.Error("second hop should not be flagged")
	}
}

func TestWAVSourceErrors(t *testing.T) {
	t.Run("Sample rate", func(t *testing.T) {
		path := writeWAV(t, 44100, 16, 1, make([]int, 1000))
		if _, err := OpenWAV(path, 0.99); !errors.Is(err, ErrSampleRate) {
			t.Errorf("expected ErrSampleRate, got %v", err)
		}
	})

	t.Run("Not a wav file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "noise.wav")
		if err := os.WriteFile(path, []byte("definitely not a RIFF header"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := OpenWAV(path, 0.99); !errors.Is(err, ErrNotWAV) {
			t.Errorf("expected ErrNotWAV, got %v", err)
		}
	})

	t.Run("Missing file", func(t *testing.T) {
		if _, err := OpenWAV(filepath.Join(t.TempDir(), "missing.wav"), 0.99); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})
}

func TestReplayMatchesLiveProcessing(t *testing.T) {
	// One second of a 440 Hz tone with a click every 500 ms.
	data := make([]int, analysis.SampleRate)
	for i := range data {
		data[i] = int(6000 * math.Sin(2*math.Pi*440*float64(i)/analysis.SampleRate))
		if i%8000 < 40 {
			data[i] += 12000
		}
	}
	path := writeWAV(t, analysis.SampleRate, 16, 1, data)

	replayFE, err := frontend.New(frontend.DefaultConfig())
	if err != nil {
		t.Fatalf("frontend.New: %v", err)
	}
	src, err := OpenWAV(path, 0.99)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	defer src.Close()

	var replayed []frontend.Frame
	hops, err := Replay(context.Background(), src, replayFE, func(f *frontend.Frame) error {
		replayed = append(replayed, *f)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if want := analysis.SampleRate / analysis.HopSize; hops != want || len(replayed) != want {
		t.Fatalf("expected %d hops, got %d (%d frames)", want, hops, len(replayed))
	}

	// The capture engine must produce the same frames from the same samples.
	engine := newTestEngine(t, 1)
	buf := make([]int16, analysis.HopSize)
	for hop, want := range replayed {
		for i := range buf {
			buf[i] = int16(data[hop*analysis.HopSize+i])
		}
		engine.processBuffer(buf)
		if engine.frame != want {
			t.Fatalf("hop %d differs between replay and capture", hop)
		}
	}
}

func TestReplayStops(t *testing.T) {
	path := writeWAV(t, analysis.SampleRate, 16, 1, make([]int, 10*analysis.HopSize))
	fe, err := frontend.New(frontend.DefaultConfig())
	if err != nil {
		t.Fatalf("frontend.New: %v", err)
	}

	t.Run("Callback error", func(t *testing.T) {
		src, err := OpenWAV(path, 0.99)
		if err != nil {
			t.Fatalf("OpenWAV: %v", err)
		}
		defer src.Close()

		stop := errors.New("stop")
		hops, err := Replay(context.Background(), src, fe, func(f *frontend.Frame) error {
			if f.HopIndex == 2 {
				return stop
			}
			return nil
		})
		if !errors.Is(err, stop) || hops != 3 {
			t.Errorf("expected stop after 3 hops, got %d hops, err %v", hops, err)
		}
	})

	t.Run("Cancelled context", func(t *testing.T) {
		src, err := OpenWAV(path, 0.99)
		if err != nil {
			t.Fatalf("OpenWAV: %v", err)
		}
		defer src.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		hops, err := Replay(ctx, src, fe, func(*frontend.Frame) error { return nil })
		if !errors.Is(err, context.Canceled) || hops != 0 {
			t.Errorf("expected immediate cancellation, got %d hops, err %v", hops, err)
		}
	})
}
