// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"ledaudio/internal/analysis"
	"ledaudio/internal/frontend"
)

var (
	// ErrNotWAV is returned for input that is not a PCM WAV file.
	ErrNotWAV = errors.New("audio: not a PCM wav file")
	// ErrSampleRate is returned for files not sampled at 16 kHz.
	ErrSampleRate = errors.New("audio: wav sample rate must be 16000 Hz")
)

// WAVSource reads a PCM WAV file as a sequence of hops, the same chunks the
// capture engine produces. Multi-channel files are downmixed and other bit
// depths are scaled to 16 bits.
type WAVSource struct {
	dec      *wav.Decoder
	closer   io.Closer
	buf      *audio.IntBuffer
	channels int
	depth    int
	clip     ClipDetector
	counter  uint64
}

// OpenWAV opens path as a WAVSource.
func OpenWAV(path string, clipThreshold float64) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	src, err := NewWAVSource(f, clipThreshold)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	src.closer = f
	return src, nil
}

// NewWAVSource reads the header from r and positions it at the sample data.
func NewWAVSource(r io.ReadSeeker, clipThreshold float64) (*WAVSource, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: audio format %d", ErrNotWAV, dec.WavAudioFormat)
	}
	if dec.SampleRate != analysis.SampleRate {
		return nil, fmt.Errorf("%w: got %d Hz", ErrSampleRate, dec.SampleRate)
	}
	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrNotWAV, dec.BitDepth)
	}
	if dec.NumChans == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrNotWAV)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, err
	}

	channels := int(dec.NumChans)
	return &WAVSource{
		dec: dec,
		buf: &audio.IntBuffer{
			Format: dec.Format(),
			Data:   make([]int, analysis.HopSize*channels),
		},
		channels: channels,
		depth:    int(dec.BitDepth),
		clip:     NewClipDetector(clipThreshold),
	}, nil
}

// Channels returns the channel count of the file.
func (s *WAVSource) Channels() int { return s.channels }

// Next fills chunk with the next hop. The last hop of a file may be short;
// its tail is zeroed and chunk.N holds the real count. Next returns io.EOF
// once the data is exhausted.
func (s *WAVSource) Next(chunk *frontend.Chunk) error {
	s.buf.Data = s.buf.Data[:cap(s.buf.Data)]
	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil {
		return err
	}
	frames := min(n/s.channels, analysis.HopSize)
	if frames == 0 {
		return io.EOF
	}

	for i := range frames {
		sum := 0
		for c := range s.channels {
			sum += s.to16(s.buf.Data[i*s.channels+c])
		}
		chunk.Samples[i] = int16(max(math.MinInt16, min(math.MaxInt16, sum/s.channels)))
	}
	clear(chunk.Samples[frames:])

	s.counter += uint64(frames)
	chunk.N = frames
	chunk.SampleCounterEnd = s.counter
	chunk.Clipping = s.clip.Detect(chunk.Samples[:frames])
	return nil
}

// to16 scales one decoded sample to the 16-bit range. 8-bit WAV data is
// unsigned.
func (s *WAVSource) to16(v int) int {
	switch s.depth {
	case 8:
		return (v - 128) << 8
	case 24:
		return v >> 8
	case 32:
		return v >> 16
	default:
		return v
	}
}

// Close closes the underlying file when the source owns it.
func (s *WAVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Replay runs every hop of src through fe and hands each frame to fn. It
// stops at the end of the file, on the first fn error or when ctx is done,
// and returns the number of hops processed.
func Replay(ctx context.Context, src *WAVSource, fe *frontend.FrontEnd, fn func(*frontend.Frame) error) (int, error) {
	var chunk frontend.Chunk
	hops := 0
	for {
		if err := ctx.Err(); err != nil {
			return hops, err
		}
		err := src.Next(&chunk)
		if errors.Is(err, io.EOF) {
			return hops, nil
		}
		if err != nil {
			return hops, err
		}

		frame := fe.ProcessHop(chunk)
		hops++
		if err := fn(&frame); err != nil {
			return hops, err
		}
	}
}
