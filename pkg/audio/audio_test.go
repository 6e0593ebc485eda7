package audio

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/oisee/freqengine/pkg/synth"
)

func playing(opts ...synth.Option) *synth.Engine {
	e := synth.New(48000, opts...)
	e.Start()
	return e
}

func TestAudio_EncodeInt16LE(t *testing.T) {
	samples := []struct {
		in     float32
		expect int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{2, 32767},
		{-3, -32767},
		{0.5, 16383},
	}
	dst := make([]byte, 2)
	for _, s := range samples {
		if n := EncodeInt16LE(dst, []float32{s.in}); n != 2 {
			t.Errorf("expect 2 bytes, actual %v", n)
		}
		if v := int16(binary.LittleEndian.Uint16(dst)); v != s.expect {
			t.Errorf("encode %v, expect %v, actual %v", s.in, s.expect, v)
		}
	}

	// A short destination truncates to whole samples.
	if n := EncodeInt16LE(make([]byte, 3), []float32{0.1, 0.2}); n != 2 {
		t.Errorf("expect 2 bytes, actual %v", n)
	}
}

func TestAudio_EncodeFloat32LE(t *testing.T) {
	dst := make([]byte, 20)
	n := EncodeFloat32LE(dst, []float32{0.25, -0.5, 1}, []float32{0.75, 1, -1})
	if n != 16 {
		t.Errorf("expect two whole frames, actual %v bytes", n)
	}
	expect := []float32{0.25, 0.75, -0.5, 1}
	for i, e := range expect {
		if v := math.Float32frombits(binary.LittleEndian.Uint32(dst[i*4:])); v != e {
			t.Errorf("value %v, expect %v, actual %v", i, e, v)
		}
	}
}

func TestAudio_PCMReaderMono(t *testing.T) {
	src, twin := playing(), playing()
	r := NewPCMReader(src, 1, 256)

	// Odd read sizes must still stitch into the same stream.
	got := make([]byte, 0, 2048)
	chunk := make([]byte, 77)
	for len(got) < 2048 {
		n, err := r.Read(chunk)
		if err != nil {
			t.Errorf("read failed, err %+v", err)
			return
		}
		got = append(got, chunk[:n]...)
	}

	ref := make([]float32, 1024)
	twin.Fill(ref[:256])
	twin.Fill(ref[256:512])
	twin.Fill(ref[512:768])
	twin.Fill(ref[768:])
	for i := 0; i < 1024; i++ {
		v := int16(binary.LittleEndian.Uint16(got[2*i:]))
		if v != toInt16(ref[i]) {
			t.Errorf("sample %v, expect %v, actual %v", i, toInt16(ref[i]), v)
			return
		}
	}
}

func TestAudio_PCMReaderStereo(t *testing.T) {
	src := playing()
	src.SetBinaural(true, 10)
	r := NewPCMReader(src, 2, 128)

	buf := make([]byte, 128*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Errorf("read failed, err %+v", err)
		return
	}

	twin := playing()
	twin.SetBinaural(true, 10)
	left, right := make([]float32, 128), make([]float32, 128)
	twin.FillStereo(left, right)
	for i := 0; i < 128; i++ {
		l := int16(binary.LittleEndian.Uint16(buf[4*i:]))
		rr := int16(binary.LittleEndian.Uint16(buf[4*i+2:]))
		if l != toInt16(left[i]) || rr != toInt16(right[i]) {
			t.Errorf("frame %v, expect %v/%v, actual %v/%v", i, toInt16(left[i]), toInt16(right[i]), l, rr)
			return
		}
	}

	if n, _ := r.Read(nil); n != 0 {
		t.Errorf("expect empty read, actual %v", n)
	}
}

func TestAudio_DeviceStream(t *testing.T) {
	src, twin := playing(), playing()
	s := newDeviceStream(src, 64)

	buf := make([]byte, 100*8)
	n, err := s.Read(buf)
	if err != nil || n != len(buf) {
		t.Errorf("expect full read, actual %v, err %+v", n, err)
		return
	}

	left, right := make([]float32, 100), make([]float32, 100)
	twin.FillStereo(left, right)
	for i := 0; i < 100; i++ {
		l := math.Float32frombits(binary.LittleEndian.Uint32(buf[8*i:]))
		r := math.Float32frombits(binary.LittleEndian.Uint32(buf[8*i+4:]))
		if l != left[i] || r != right[i] {
			t.Errorf("frame %v, expect %v/%v, actual %v/%v", i, left[i], right[i], l, r)
			return
		}
	}

	s.closed.Store(true)
	n, _ = s.Read(buf)
	if n != len(buf) {
		t.Errorf("expect silence fill, actual %v", n)
	}
	for i, b := range buf {
		if b != 0 {
			t.Errorf("expect silence at byte %v", i)
			return
		}
	}
}

func TestAudio_ExportWAV(t *testing.T) {
	samples := []struct {
		channels int
		d        time.Duration
		frames   int
	}{
		{1, 250 * time.Millisecond, 12000},
		{2, 100 * time.Millisecond, 4800},
	}
	for _, s := range samples {
		name := filepath.Join(t.TempDir(), "tone.wav")
		f, err := os.Create(name)
		if err != nil {
			t.Errorf("create failed, err %+v", err)
			return
		}

		src := playing(synth.WithAmplitude(0.8))
		src.SetBinaural(true, 6)
		if err := ExportWAV(context.Background(), src, f, s.d, s.channels); err != nil {
			t.Errorf("export failed, err %+v", err)
			f.Close()
			return
		}
		f.Close()

		rf, err := os.Open(name)
		if err != nil {
			t.Errorf("open failed, err %+v", err)
			return
		}
		dec := wav.NewDecoder(rf)
		pcm, err := dec.FullPCMBuffer()
		rf.Close()
		if err != nil {
			t.Errorf("decode failed, err %+v", err)
			return
		}

		if int(dec.SampleRate) != 48000 || int(dec.NumChans) != s.channels || dec.BitDepth != 16 {
			t.Errorf("expect 48000/%v/16, actual %v/%v/%v", s.channels, dec.SampleRate, dec.NumChans, dec.BitDepth)
		}
		if n := pcm.NumFrames(); n != s.frames {
			t.Errorf("expect %v frames, actual %v", s.frames, n)
		}

		peak := 0
		for _, v := range pcm.Data {
			peak = max(peak, v, -v)
		}
		if peak < 20000 || peak > 32767 {
			t.Errorf("expect a loud tone, actual peak %v", peak)
		}
	}
}

func TestAudio_ExportWAVRejectsBadInput(t *testing.T) {
	name := filepath.Join(t.TempDir(), "bad.wav")
	f, err := os.Create(name)
	if err != nil {
		t.Errorf("create failed, err %+v", err)
		return
	}
	defer f.Close()

	if err := ExportWAV(context.Background(), playing(), f, 0, 1); err == nil {
		t.Errorf("expect error for zero duration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ExportWAV(ctx, playing(), f, time.Second, 1); err == nil {
		t.Errorf("expect error for canceled context")
	}
}
