package synth

import "math"

// Snapshot is the control state published to the render path, read once per buffer
type Snapshot struct {
	State     PlaybackState
	Waveform  Waveform
	Frequency float64
	Amplitude float64
	Beat      float64 // effective binaural offset, zero when binaural is off
	Onsets    uint64  // bumps on every start and resume
	Stops     uint64  // bumps on every stop
}

// Renderer turns snapshots into samples. It owns the oscillator phases and
// the smoothed parameters and must only be used from the render goroutine.
type Renderer struct {
	left, right Oscillator
	freq        Param
	amp         Param
	beat        Param

	freqBits, ampBits, beatBits uint64
	onsets, stops               uint64
}

// NewRenderer creates a renderer resting at freq with zero amplitude
func NewRenderer(sampleRate, window int, freq float64) *Renderer {
	r := &Renderer{
		left:  Oscillator{SampleRate: sampleRate},
		right: Oscillator{SampleRate: sampleRate},
	}
	lo, hi := FrequencyRange(sampleRate)
	r.freq = *NewParam(freq, lo, hi, window)
	r.amp = *NewParam(0, 0, 1, window)
	r.beat = *NewParam(0, 0, MaxBeat, window)
	r.freqBits = math.Float64bits(r.freq.Target())
	return r
}

// sync folds a snapshot into the ramps. A changed target restarts its ramp
// from the current value; an onset fades amplitude in from zero.
func (r *Renderer) sync(snap *Snapshot) {
	if snap.Stops != r.stops {
		r.stops = snap.Stops
		r.left.Reset()
		r.right.Reset()
	}

	fb := math.Float64bits(snap.Frequency)
	ab := math.Float64bits(snap.Amplitude)
	bb := math.Float64bits(snap.Beat)

	if snap.Onsets != r.onsets {
		r.onsets = snap.Onsets
		// Amplitude starts at zero, so pitch can jump without a click.
		r.freq.Reset(snap.Frequency)
		r.beat.Reset(snap.Beat)
		r.amp.Reset(0)
		r.amp.SetTarget(snap.Amplitude)
		r.freqBits, r.ampBits, r.beatBits = fb, ab, bb
		return
	}

	if fb != r.freqBits {
		r.freqBits = fb
		r.freq.SetTarget(snap.Frequency)
	}
	if ab != r.ampBits {
		r.ampBits = ab
		r.amp.SetTarget(snap.Amplitude)
	}
	if bb != r.beatBits {
		r.beatBits = bb
		r.beat.SetTarget(snap.Beat)
	}
}

// Render fills buf with one period of mono audio. Outside Playing the buffer
// is silenced and the phase is held.
func (r *Renderer) Render(buf []float32, snap Snapshot) {
	if snap.State != Playing {
		clear(buf)
		return
	}
	r.sync(&snap)

	w := snap.Waveform
	for i := range buf {
		f := r.freq.Advance()
		a := r.amp.Advance()
		ph := r.left.Advance(f)
		buf[i] = float32(Sample(ph, w) * a)
	}
}

// RenderStereo fills left with the carrier and right with the carrier shifted
// by the binaural beat. Both slices are filled up to the shorter length.
func (r *Renderer) RenderStereo(left, right []float32, snap Snapshot) {
	n := min(len(left), len(right))
	left, right = left[:n], right[:n]
	if snap.State != Playing {
		clear(left)
		clear(right)
		return
	}
	r.sync(&snap)

	w := snap.Waveform
	for i := range left {
		f := r.freq.Advance()
		a := r.amp.Advance()
		b := r.beat.Advance()
		left[i] = float32(Sample(r.left.Advance(f), w) * a)
		right[i] = float32(Sample(r.right.Advance(r.freq.Clamp(f+b)), w) * a)
	}
}

// Phase returns the carrier phase
func (r *Renderer) Phase() float64 { return r.left.Phase }

// Levels returns the smoothed frequency and amplitude as last rendered
func (r *Renderer) Levels() (freq, amp float64) {
	return r.freq.Current(), r.amp.Current()
}
