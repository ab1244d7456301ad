// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"ledaudio/internal/analysis"
)

func TestRecordingFormat(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "stereo-input.wav")
	engine := newTestEngine(t, 2)

	if err := engine.StartRecording(filename); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	engine.processBuffer(sineHop(0, 2, 9000))
	if err := engine.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}

	f, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		t.Fatal("recording is not a valid WAV file")
	}
	// A stereo device is recorded as the downmixed mono stream.
	if dec.SampleRate != analysis.SampleRate || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("format = %d Hz, %d ch, %d bit, expected %d Hz mono 16 bit",
			dec.SampleRate, dec.NumChans, dec.BitDepth, analysis.SampleRate)
	}
	if got := len(readAll(t, filename)); got != analysis.HopSize {
		t.Errorf("recorded %d samples, expected one hop", got)
	}
}

func TestRecordingStateErrors(t *testing.T) {
	dir := t.TempDir()
	engine := newTestEngine(t, 1)

	if err := engine.StopRecording(); err != nil {
		t.Errorf("StopRecording while idle: %v", err)
	}
	if err := engine.StartRecording(filepath.Join(dir, "missing", "dir", "x.wav")); err == nil {
		t.Error("expected an error for a missing directory")
	}
	if atomic.LoadInt32(&engine.isRecording) != 0 {
		t.Error("a failed start left the engine recording")
	}

	if err := engine.StartRecording(filepath.Join(dir, "first.wav")); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	err := engine.StartRecording(filepath.Join(dir, "second.wav"))
	if err == nil || !strings.Contains(err.Error(), "already recording") {
		t.Errorf("second StartRecording error = %v, expected already recording", err)
	}
	if err := engine.StopRecording(); err != nil {
		t.Errorf("StopRecording: %v", err)
	}
}

func TestCloseFinishesRecording(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "closed.wav")
	engine := newTestEngine(t, 1)

	if err := engine.StartRecording(filename); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	for hop := range 3 {
		engine.processBuffer(sineHop(uint64(hop)*analysis.HopSize, 1, 9000))
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if atomic.LoadInt32(&engine.isRecording) != 0 || engine.outputFile != nil {
		t.Error("Close left the recording open")
	}
	if got := len(readAll(t, filename)); got != 3*analysis.HopSize {
		t.Errorf("recorded %d samples, expected %d", got, 3*analysis.HopSize)
	}
}

func TestRecordingRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "roundtrip.wav")
	engine := newTestEngine(t, 1)
	if err := engine.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}

	const hops = 20
	var want []int16
	for hop := range hops {
		buf := sineHop(uint64(hop)*analysis.HopSize, 1, 12000)
		want = append(want, buf...)
		engine.processBuffer(buf)
	}
	if err := engine.StopRecording(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}

	got := readAll(t, filename)
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRecordingMaxDuration(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "limited.wav")
	engine := newTestEngine(t, 1)
	engine.maxRecorded = analysis.SampleRate // One second.

	if err := engine.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	for hop := range 130 {
		engine.processBuffer(sineHop(uint64(hop)*analysis.HopSize, 1, 12000))
	}
	if err := engine.StopRecording(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}

	if got := len(readAll(t, filename)); got != analysis.SampleRate {
		t.Errorf("expected %d recorded samples, got %d", analysis.SampleRate, got)
	}
	if !engine.halted {
		t.Error("expected the recording to be halted at the limit")
	}
}

func TestRecordingPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "recordings")
	now := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	path, err := RecordingPath(dir, now)
	if err != nil {
		t.Fatalf("RecordingPath: %v", err)
	}
	if want := filepath.Join(dir, "capture-20250314-150926.wav"); path != want {
		t.Errorf("got %q, want %q", path, want)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("directory was not created: %v", err)
	}
}

func BenchmarkRecordingProcessHotPath(b *testing.B) {
	engine := newTestEngine(b, 1)
	buf := sineHop(0, 1, 8000)

	filename := filepath.Join(b.TempDir(), "bench_process.wav")
	_ = engine.StartRecording(filename)
	defer engine.StopRecording()

	b.ReportAllocs()
	for b.Loop() {
		engine.processBuffer(buf)
	}
}
