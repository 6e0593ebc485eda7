package audio

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/ossrs/go-oryx-lib/logger"
)

// Device plays a Source on the default sound card as stereo float32.
// oto allows one context per process, so open a single Device.
type Device struct {
	otoCtx    *oto.Context
	otoPlayer *oto.Player
	stream    *deviceStream
}

// OpenDevice starts real-time playback of src. buffer is the device latency.
func OpenDevice(ctx context.Context, src Source, buffer time.Duration) (*Device, error) {
	if buffer <= 0 {
		buffer = 20 * time.Millisecond
	}

	op := &oto.NewContextOptions{
		SampleRate:   src.SampleRate(),
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   buffer,
	}

	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, errors.Wrapf(err, "open audio device rate=%v", op.SampleRate)
	}
	<-ready

	frames := int(buffer.Seconds()*float64(src.SampleRate())) + 1
	d := &Device{
		otoCtx: otoCtx,
		stream: newDeviceStream(src, frames),
	}

	d.otoPlayer = otoCtx.NewPlayer(d.stream)
	d.otoPlayer.SetBufferSize(frames * 8)
	d.otoPlayer.Play()

	logger.Tf(ctx, "Audio device open, rate=%v, buffer=%v, frames=%v", op.SampleRate, buffer, frames)
	return d, nil
}

// Close stops the audio output
func (d *Device) Close() error {
	d.stream.closed.Store(true)
	if d.otoPlayer != nil {
		if err := d.otoPlayer.Close(); err != nil {
			return errors.Wrapf(err, "close player")
		}
	}
	return nil
}

// deviceStream implements io.Reader for oto. Read runs on the audio
// goroutine, which makes it the engine's render path.
type deviceStream struct {
	src    Source
	left   []float32
	right  []float32
	closed atomic.Bool
}

func newDeviceStream(src Source, frames int) *deviceStream {
	return &deviceStream{
		src:   src,
		left:  make([]float32, frames),
		right: make([]float32, frames),
	}
}

func (s *deviceStream) Read(buf []byte) (int, error) {
	if s.closed.Load() {
		clear(buf)
		return len(buf), nil
	}

	frames := len(buf) / 8
	// Only grows if the device asks for more than the configured latency.
	if frames > len(s.left) {
		s.left = make([]float32, frames)
		s.right = make([]float32, frames)
	}

	left, right := s.left[:frames], s.right[:frames]
	s.src.FillStereo(left, right)
	return EncodeFloat32LE(buf, left, right), nil
}
