package audio

import (
	"context"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/ossrs/go-oryx-lib/logger"
)

// ExportChunk is the number of frames rendered per WAV write
const ExportChunk = 4096

// ExportWAV renders d worth of audio from src into a 16-bit PCM WAV file.
// The caller puts the engine into the state it wants recorded.
func ExportWAV(ctx context.Context, src Source, w io.WriteSeeker, d time.Duration, channels int) error {
	if channels != 2 {
		channels = 1
	}
	if d <= 0 {
		return errors.Errorf("invalid duration %v", d)
	}

	sampleRate := src.SampleRate()
	totalFrames := int(d.Seconds() * float64(sampleRate))

	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
		Data:           make([]int, ExportChunk*channels),
		SourceBitDepth: 16,
	}
	left := make([]float32, ExportChunk)
	right := make([]float32, ExportChunk)

	for written := 0; written < totalFrames; {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "export interrupted at frame %v", written)
		}

		n := min(ExportChunk, totalFrames-written)
		if channels == 1 {
			src.Fill(left[:n])
			for i := 0; i < n; i++ {
				buf.Data[i] = int(toInt16(left[i]))
			}
		} else {
			src.FillStereo(left[:n], right[:n])
			for i := 0; i < n; i++ {
				buf.Data[2*i] = int(toInt16(left[i]))
				buf.Data[2*i+1] = int(toInt16(right[i]))
			}
		}

		chunk := &goaudio.IntBuffer{Format: buf.Format, Data: buf.Data[:n*channels], SourceBitDepth: 16}
		if err := enc.Write(chunk); err != nil {
			return errors.Wrapf(err, "write wav frames %v~%v", written, written+n)
		}
		written += n
	}

	if err := enc.Close(); err != nil {
		return errors.Wrapf(err, "close wav")
	}
	logger.Tf(ctx, "Export wav ok, rate=%v, channels=%v, frames=%v, duration=%v",
		sampleRate, channels, totalFrames, d)
	return nil
}
