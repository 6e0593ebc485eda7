// Package audio connects the synthesis engine to sinks: the sound card, raw
// PCM streams and WAV files
package audio

import (
	"encoding/binary"
	"io"
	"math"
)

// Source is the render side of a synth.Engine
type Source interface {
	SampleRate() int
	Fill(buf []float32)
	FillStereo(left, right []float32)
}

// toInt16 clamps a float sample and scales it to 16-bit
func toInt16(s float32) int16 {
	if s > 1.0 {
		s = 1.0
	}
	if s < -1.0 {
		s = -1.0
	}
	return int16(s * 32767)
}

// EncodeFloat32LE interleaves left and right into dst as 32-bit float frames
// and returns the number of bytes written
func EncodeFloat32LE(dst []byte, left, right []float32) int {
	n := 0
	for i := range left {
		if n+8 > len(dst) || i >= len(right) {
			break
		}
		binary.LittleEndian.PutUint32(dst[n:], math.Float32bits(left[i]))
		binary.LittleEndian.PutUint32(dst[n+4:], math.Float32bits(right[i]))
		n += 8
	}
	return n
}

// EncodeInt16LE writes samples into dst as signed 16-bit PCM and returns the
// number of bytes written
func EncodeInt16LE(dst []byte, samples []float32) int {
	n := 0
	for _, s := range samples {
		if n+2 > len(dst) {
			break
		}
		binary.LittleEndian.PutUint16(dst[n:], uint16(toInt16(s)))
		n += 2
	}
	return n
}

// PCMReader implements io.Reader for 16-bit little-endian PCM rendered on demand
type PCMReader struct {
	src      Source
	channels int
	left     []float32
	right    []float32
	frame    []float32
	pending  []byte
	scratch  []byte
}

// NewPCMReader creates a reader of mono (channels == 1) or interleaved
// stereo PCM. frames is the render period.
func NewPCMReader(src Source, channels, frames int) *PCMReader {
	if channels != 2 {
		channels = 1
	}
	if frames <= 0 {
		frames = 512
	}
	return &PCMReader{
		src:      src,
		channels: channels,
		left:     make([]float32, frames),
		right:    make([]float32, frames),
		frame:    make([]float32, frames*channels),
		scratch:  make([]byte, frames*channels*2),
	}
}

// Read never fails; it renders another period whenever its buffer runs dry
func (r *PCMReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(r.pending) == 0 {
		r.render()
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *PCMReader) render() {
	if r.channels == 1 {
		r.src.Fill(r.left)
		n := EncodeInt16LE(r.scratch, r.left)
		r.pending = r.scratch[:n]
		return
	}

	r.src.FillStereo(r.left, r.right)
	for i := range r.left {
		r.frame[2*i] = r.left[i]
		r.frame[2*i+1] = r.right[i]
	}
	n := EncodeInt16LE(r.scratch, r.frame)
	r.pending = r.scratch[:n]
}

var _ io.Reader = (*PCMReader)(nil)
