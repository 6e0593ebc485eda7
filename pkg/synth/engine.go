package synth

import (
	"math"
	"sync/atomic"
	"time"
)

const (
	DefaultSampleRate = 48000
	DefaultRamp       = 5 * time.Millisecond
	DefaultFrequency  = 440.0
	DefaultAmplitude  = 0.5

	// MinFrequency is the lowest frequency the engine will render
	MinFrequency = 0.01
	// MaxBeat bounds the binaural offset between the two ears
	MaxBeat = 40.0
)

// FrequencyRange returns the renderable band for a sample rate: above zero
// and strictly below Nyquist.
func FrequencyRange(sampleRate int) (lo, hi float64) {
	return MinFrequency, math.Nextafter(float64(sampleRate)/2, 0)
}

// Option configures an Engine at construction
type Option func(*Engine)

// WithRamp sets the smoothing window applied to every parameter change
func WithRamp(d time.Duration) Option {
	return func(e *Engine) { e.ramp = d }
}

// WithFrequency sets the initial frequency target
func WithFrequency(hz float64) Option {
	return func(e *Engine) { e.SetFrequency(hz) }
}

// WithAmplitude sets the initial amplitude target
func WithAmplitude(level float64) Option {
	return func(e *Engine) { e.SetAmplitude(level) }
}

// WithWaveform sets the initial waveform
func WithWaveform(w Waveform) Option {
	return func(e *Engine) { e.SetWaveform(w) }
}

// Engine is a single tone generator shared between a control path and one
// render path. Control methods may be called from any goroutine; Fill and
// FillStereo must be called from one goroutine at a time.
//
// Control state is published through atomics and picked up by the renderer
// once per buffer, so neither side ever waits on the other.
type Engine struct {
	sampleRate int
	ramp       time.Duration
	lo, hi     float64

	// transport packs state, onset count and stop count, see packTransport
	transport atomic.Uint64
	waveform  atomic.Uint32
	freq      atomic.Uint64
	amp       atomic.Uint64
	beat      atomic.Uint64
	binaural  atomic.Bool

	r *Renderer
}

// New creates an engine for a fixed sample rate. Non-positive rates fall back
// to DefaultSampleRate.
func New(sampleRate int, opts ...Option) *Engine {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	e := &Engine{sampleRate: sampleRate, ramp: DefaultRamp}
	e.lo, e.hi = FrequencyRange(sampleRate)
	e.freq.Store(math.Float64bits(clamp(DefaultFrequency, e.lo, e.hi)))
	e.amp.Store(math.Float64bits(DefaultAmplitude))

	for _, opt := range opts {
		opt(e)
	}

	e.r = NewRenderer(sampleRate, RampSamples(e.ramp, sampleRate), e.Frequency())
	return e
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// transport word layout: bits 0-7 state, 8-35 onsets, 36-63 stops.
// Counters wrap; the renderer only compares them for equality.
const (
	onsetShift = 8
	stopShift  = 36
	countMask  = 1<<28 - 1
)

func packTransport(s PlaybackState, onsets, stops uint64) uint64 {
	return uint64(s)&0xff | (onsets&countMask)<<onsetShift | (stops&countMask)<<stopShift
}

func unpackTransport(v uint64) (s PlaybackState, onsets, stops uint64) {
	return PlaybackState(v & 0xff), (v >> onsetShift) & countMask, (v >> stopShift) & countMask
}

// apply runs cmd through the state machine. Concurrent callers retry on
// contention; an invalid transition returns false without touching anything.
func (e *Engine) apply(cmd Command) bool {
	for {
		old := e.transport.Load()
		s, onsets, stops := unpackTransport(old)
		next, ok := s.Apply(cmd)
		if !ok {
			return false
		}
		switch next {
		case Playing:
			onsets++
		case Stopped:
			stops++
		}
		if e.transport.CompareAndSwap(old, packTransport(next, onsets, stops)) {
			return true
		}
	}
}

// Start begins playback from Stopped
func (e *Engine) Start() { e.apply(CmdStart) }

// Stop silences the engine from Playing or Paused; the next start begins at phase zero
func (e *Engine) Stop() { e.apply(CmdStop) }

// Pause holds the phase and silences output
func (e *Engine) Pause() { e.apply(CmdPause) }

// Resume continues from the phase held by Pause
func (e *Engine) Resume() { e.apply(CmdResume) }

// Toggle starts a stopped engine, pauses a playing one and resumes a paused one
func (e *Engine) Toggle() {
	for _, cmd := range []Command{CmdStart, CmdPause, CmdResume} {
		if e.apply(cmd) {
			return
		}
	}
}

// SetFrequency publishes a new frequency target, clamped below Nyquist.
// NaN is ignored.
func (e *Engine) SetFrequency(hz float64) {
	if math.IsNaN(hz) {
		return
	}
	e.freq.Store(math.Float64bits(clamp(hz, e.lo, e.hi)))
}

// SetAmplitude publishes a new amplitude target, clamped to [0, 1]. NaN is ignored.
func (e *Engine) SetAmplitude(level float64) {
	if math.IsNaN(level) {
		return
	}
	e.amp.Store(math.Float64bits(clamp(level, 0, 1)))
}

// SetWaveform selects the waveform; unknown values fall back to Sine
func (e *Engine) SetWaveform(w Waveform) {
	if w >= numWaveforms {
		w = Sine
	}
	e.waveform.Store(uint32(w))
}

// SetBinaural enables or disables the binaural offset on the right channel.
// The beat is clamped to [0, MaxBeat]; NaN keeps the previous beat.
func (e *Engine) SetBinaural(enabled bool, beatHz float64) {
	if !math.IsNaN(beatHz) {
		e.beat.Store(math.Float64bits(clamp(beatHz, 0, MaxBeat)))
	}
	e.binaural.Store(enabled)
}

func (e *Engine) SampleRate() int { return e.sampleRate }

func (e *Engine) State() PlaybackState {
	s, _, _ := unpackTransport(e.transport.Load())
	return s
}

func (e *Engine) Waveform() Waveform { return Waveform(e.waveform.Load()) }

// Frequency returns the published frequency target
func (e *Engine) Frequency() float64 { return math.Float64frombits(e.freq.Load()) }

// Amplitude returns the published amplitude target
func (e *Engine) Amplitude() float64 { return math.Float64frombits(e.amp.Load()) }

// Binaural returns whether the offset is enabled and the configured beat
func (e *Engine) Binaural() (bool, float64) {
	return e.binaural.Load(), math.Float64frombits(e.beat.Load())
}

// RampWindow returns the smoothing window in samples
func (e *Engine) RampWindow() int { return RampSamples(e.ramp, e.sampleRate) }

// Snapshot loads the published control state
func (e *Engine) Snapshot() Snapshot {
	s, onsets, stops := unpackTransport(e.transport.Load())
	snap := Snapshot{
		State:     s,
		Waveform:  Waveform(e.waveform.Load()),
		Frequency: math.Float64frombits(e.freq.Load()),
		Amplitude: math.Float64frombits(e.amp.Load()),
		Onsets:    onsets,
		Stops:     stops,
	}
	if e.binaural.Load() {
		snap.Beat = math.Float64frombits(e.beat.Load())
	}
	return snap
}

// Fill renders one mono period into buf. Render goroutine only.
func (e *Engine) Fill(buf []float32) {
	e.r.Render(buf, e.Snapshot())
}

// FillStereo renders one stereo period with the binaural offset on the right
// channel. Render goroutine only.
func (e *Engine) FillStereo(left, right []float32) {
	e.r.RenderStereo(left, right, e.Snapshot())
}

// Phase returns the carrier phase. Render goroutine only.
func (e *Engine) Phase() float64 { return e.r.Phase() }

// Levels returns the smoothed frequency and amplitude reached by the last
// fill. Render goroutine only.
func (e *Engine) Levels() (freq, amp float64) { return e.r.Levels() }
