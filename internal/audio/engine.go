// SPDX-License-Identifier: MIT
/*
Package audio captures the 16 kHz mono stream that feeds the analysis front
end:
- Lock-free audio capture using PortAudio, one 128-sample hop per callback
- Downmix, clipping detection and the per-hop FrontEnd call
- Hop timing against the real-time budget (telemetry only)
- WAV recording of the captured input and offline WAV replay

Thread Safety:
- The PortAudio callback is the only caller of FrontEnd.ProcessHop
- Frames leave the callback through a frontend.Handoff
- Uses atomic operations for recording state
- Pre-allocates buffers to avoid GC in hot path
*/
package audio

import (
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"ledaudio/internal/analysis"
	"ledaudio/internal/config"
	"ledaudio/internal/frontend"
	applog "ledaudio/internal/log"
)

var log = applog.Named("engine")

type Engine struct {
	// Core configuration and state.
	config   *config.Config
	channels int
	budget   time.Duration

	// Audio input handling.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Feature extraction.
	frontEnd *frontend.FrontEnd
	handoff  *frontend.Handoff
	clip     ClipDetector
	chunk    frontend.Chunk
	frame    frontend.Frame
	counter  uint64 // Samples captured since the stream started.

	// Recording state and buffers.
	isRecording   int32 // Atomic flag for thread-safe state
	outputFile    *os.File
	wavEncoder    *wav.Encoder
	sampleBuf     *audio.IntBuffer // Reusable buffer for format conversion
	recorded      uint64           // Samples written to the current file
	maxRecorded   uint64           // 0 for unlimited
	writeFailures int
	halted        bool // Recording stopped by the callback (limit or errors)
}

// NewEngine opens the configured input device and prepares a capture engine
// that feeds fe and publishes every frame to handoff.
func NewEngine(cfg *config.Config, fe *frontend.FrontEnd, handoff *frontend.Handoff) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}

	engine := newEngine(cfg, fe, handoff)
	engine.inputDevice = inputDevice

	if cfg.Audio.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	log.Infof("input device %q, %d channel(s), latency %v, hop budget %v",
		inputDevice.Name, engine.channels, engine.inputLatency, engine.budget)
	return engine, nil
}

// newEngine builds an engine without a device.
func newEngine(cfg *config.Config, fe *frontend.FrontEnd, handoff *frontend.Handoff) *Engine {
	return &Engine{
		config:      cfg,
		channels:    max(1, cfg.Audio.InputChannels),
		budget:      cfg.HopBudget(),
		frontEnd:    fe,
		handoff:     handoff,
		clip:        NewClipDetector(cfg.Audio.ClipThreshold),
		maxRecorded: cfg.MaxRecordSamples(),
	}
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: analysis.HopSize,
		SampleRate:      analysis.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		return err
	}

	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
	}

	return nil
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.processBuffer(in)
}

// processBuffer turns one interleaved capture buffer into a hop and runs
// the front end on it.
// Performance Critical (Hot Path):
// - No allocations
// - Branchless clipping detection
// - Wall time is measured for the overrun report only
func (e *Engine) processBuffer(in []int16) {
	start := time.Now()

	n := min(len(in)/e.channels, analysis.HopSize)
	if e.channels == 1 {
		copy(e.chunk.Samples[:n], in)
	} else {
		for i := range n {
			var sum int32
			for c := range e.channels {
				sum += int32(in[i*e.channels+c])
			}
			e.chunk.Samples[i] = int16(sum / int32(e.channels))
		}
	}
	clear(e.chunk.Samples[n:])

	e.counter += uint64(n)
	e.chunk.N = n
	e.chunk.SampleCounterEnd = e.counter
	e.chunk.Clipping = e.clip.Detect(in)

	e.frame = e.frontEnd.ProcessHop(e.chunk)
	e.handoff.Publish(&e.frame)

	if atomic.LoadInt32(&e.isRecording) == 1 {
		e.record(e.chunk.Samples[:n])
	}

	if time.Since(start) > e.budget {
		e.frontEnd.ReportOverrun()
	}
}

// Counter returns the number of samples captured so far. It must be called
// from the capture goroutine or after the stream stopped.
func (e *Engine) Counter() uint64 { return e.counter }

func (e *Engine) Close() error {
	if err := e.StopInputStream(); err != nil {
		return err
	}

	if atomic.LoadInt32(&e.isRecording) == 1 {
		if err := e.StopRecording(); err != nil {
			return err
		}
	}

	st := e.frontEnd.Stats()
	log.Infof("stopped after %d hops (%d harmony ticks, %d skipped, %d overruns, %d resyncs)",
		st.Hops, st.HarmonyTicks, st.HarmonySkipped, st.Overruns, st.CounterResyncs)
	return nil
}
