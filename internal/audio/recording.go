package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"ledaudio/internal/analysis"
	"ledaudio/internal/config"
)

// RecordingPath returns a timestamped file name inside dir, creating dir if
// needed.
func RecordingPath(dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recording directory: %w", err)
	}
	return filepath.Join(dir, "capture-"+now.Format("20060102-150405")+".wav"), nil
}

// StartRecording writes the mono 16-bit input stream to filename until
// StopRecording.
func (e *Engine) StartRecording(filename string) error {
	if atomic.LoadInt32(&e.isRecording) == 1 {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	e.outputFile = file

	e.wavEncoder = wav.NewEncoder(file, analysis.SampleRate, 16, 1, 1)

	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  analysis.SampleRate,
		},
		Data:           make([]int, analysis.HopSize),
		SourceBitDepth: 16,
	}
	e.recorded = 0
	e.writeFailures = 0
	e.halted = false

	atomic.StoreInt32(&e.isRecording, 1)
	log.Infof("recording to %s", filename)

	return nil
}

// record appends one hop to the open file. Called from the capture
// goroutine only.
func (e *Engine) record(samples []int16) {
	if e.halted || e.wavEncoder == nil {
		return
	}
	if e.maxRecorded > 0 && e.recorded+uint64(len(samples)) > e.maxRecorded {
		e.halted = true
		log.Infof("recording reached its %d sample limit", e.maxRecorded)
		return
	}

	e.sampleBuf.Data = e.sampleBuf.Data[:len(samples)]
	for i, sample := range samples {
		e.sampleBuf.Data[i] = int(sample)
	}

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		e.writeFailures++
		log.Errorf("error writing to WAV file: %v", err)
		if e.writeFailures >= config.DefaultMaxConsecutiveWriteFailures {
			e.halted = true
			log.Errorf("recording halted after %d consecutive write failures", e.writeFailures)
		}
		return
	}
	e.writeFailures = 0
	e.recorded += uint64(len(samples))
}

func (e *Engine) StopRecording() error {
	if atomic.LoadInt32(&e.isRecording) == 0 {
		return nil
	}

	atomic.StoreInt32(&e.isRecording, 0)

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}

	if e.outputFile != nil {
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
	}

	return nil
}
