// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"ledaudio/internal/analysis"
	"ledaudio/internal/frontend"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Sample Time       | uint64         | 8            | Frame TSamples          |
| Hop Index         | uint64         | 8            | Frame HopIndex          |
| Flags             | uint16         | 2            | See flag bits below     |
| Levels            | uint8          | 1            | Rhythm<<4 | Harmony     |
| Scalars           | [7]float32     | 28           | See scalar order below  |
| Rhythm Count      | uint16         | 2            | Number of floats (R)    |
| Rhythm Bins       | []float32      | R * 4        |                         |
| Harmony Count     | uint16         | 2            | Number of floats (H)    |
| Harmony Bins      | []float32      | H * 4        |                         |
| Chroma Count      | uint16         | 2            | Number of floats (C)    |
| Chroma            | []float32      | C * 4        |                         |
+-----------------------------------------------------------------------------+

Scalars: RhythmEnergy, RhythmNovelty, KeyClarity, ChromaStability, BPM,
BeatPhase, TempoConfidence.

Receivers must check the counts; they are 24, 64 and 12 today.
*/

// Flag bits.
const (
	FlagClipping uint16 = 1 << iota
	FlagSilence
	FlagOverload
	FlagHarmonyValid
	FlagTempoLocked
	FlagBeatTick
)

const headerSize = 4 + 8 + 8 + 2 + 1 + 7*4

// PacketSize is the encoded size of one frame.
const PacketSize = headerSize + 3*2 + (analysis.RhythmBins+analysis.HarmonyBins+analysis.PitchClasses)*4

// ErrMalformed is returned by DecodeFrame for truncated or inconsistent packets.
var ErrMalformed = errors.New("udp: malformed packet")

// AppendFrame appends the encoding of f to dst and returns the result.
// With cap(dst) >= PacketSize it does not allocate.
func AppendFrame(dst []byte, seq uint32, f *frontend.Frame) []byte {
	var flags uint16
	if f.IsClipping {
		flags |= FlagClipping
	}
	if f.IsSilence {
		flags |= FlagSilence
	}
	if f.Overload {
		flags |= FlagOverload
	}
	if f.HarmonyValid {
		flags |= FlagHarmonyValid
	}
	if f.TempoLocked {
		flags |= FlagTempoLocked
	}
	if f.BeatTick {
		flags |= FlagBeatTick
	}

	be := binary.BigEndian
	dst = be.AppendUint32(dst, seq)
	dst = be.AppendUint64(dst, f.TSamples)
	dst = be.AppendUint64(dst, f.HopIndex)
	dst = be.AppendUint16(dst, flags)
	dst = append(dst, byte(f.RhythmLevel&0x0f)<<4|byte(f.HarmonyLevel&0x0f))

	for _, v := range [...]float32{
		f.RhythmEnergy, f.RhythmNovelty, f.KeyClarity, f.ChromaStability,
		f.BPM, f.BeatPhase, f.TempoConfidence,
	} {
		dst = be.AppendUint32(dst, math.Float32bits(v))
	}

	dst = appendFloats(dst, f.RhythmBins[:])
	dst = appendFloats(dst, f.HarmonyBins[:])
	dst = appendFloats(dst, f.Chroma12[:])
	return dst
}

func appendFloats(dst []byte, values []float32) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(values)))
	for _, v := range values {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// DecodeFrame parses a packet produced by AppendFrame.
func DecodeFrame(b []byte) (seq uint32, f frontend.Frame, err error) {
	if len(b) < headerSize {
		return 0, f, fmt.Errorf("%w: %d bytes", ErrMalformed, len(b))
	}
	be := binary.BigEndian
	seq = be.Uint32(b)
	f.TSamples = be.Uint64(b[4:])
	f.HopIndex = be.Uint64(b[12:])
	f.TMicros = f.TSamples * 1_000_000 / analysis.SampleRate
	flags := be.Uint16(b[20:])
	f.IsClipping = flags&FlagClipping != 0
	f.IsSilence = flags&FlagSilence != 0
	f.Overload = flags&FlagOverload != 0
	f.HarmonyValid = flags&FlagHarmonyValid != 0
	f.TempoLocked = flags&FlagTempoLocked != 0
	f.BeatTick = flags&FlagBeatTick != 0
	f.RhythmLevel = analysis.Level(b[22] >> 4)
	f.HarmonyLevel = analysis.Level(b[22] & 0x0f)

	scalars := [...]*float32{
		&f.RhythmEnergy, &f.RhythmNovelty, &f.KeyClarity, &f.ChromaStability,
		&f.BPM, &f.BeatPhase, &f.TempoConfidence,
	}
	off := 23
	for _, p := range scalars {
		*p = math.Float32frombits(be.Uint32(b[off:]))
		off += 4
	}

	rest := b[off:]
	if rest, err = readFloats(rest, f.RhythmBins[:]); err != nil {
		return 0, f, err
	}
	if rest, err = readFloats(rest, f.HarmonyBins[:]); err != nil {
		return 0, f, err
	}
	if rest, err = readFloats(rest, f.Chroma12[:]); err != nil {
		return 0, f, err
	}
	if len(rest) != 0 {
		return 0, f, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(rest))
	}
	return seq, f, nil
}

func readFloats(b []byte, out []float32) ([]byte, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("%w: missing count", ErrMalformed)
	}
	n := int(binary.BigEndian.Uint16(b))
	b = b[2:]
	if n != len(out) {
		return nil, fmt.Errorf("%w: count %d, want %d", ErrMalformed, n, len(out))
	}
	if len(b) < 4*n {
		return nil, fmt.Errorf("%w: truncated payload", ErrMalformed)
	}
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(b[4*i:]))
	}
	return b[4*n:], nil
}
