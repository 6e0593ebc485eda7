// Package synth implements the frequency-driven synthesis engine
package synth

import (
	"math"
	"strings"
)

// Waveform selects the per-sample generation function
type Waveform uint32

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle

	numWaveforms
)

var waveformNames = [numWaveforms]string{"sine", "square", "sawtooth", "triangle"}

func (w Waveform) String() string {
	if w < numWaveforms {
		return waveformNames[w]
	}
	return "unknown"
}

// Next cycles through the waveforms in declaration order
func (w Waveform) Next() Waveform {
	return (w + 1) % numWaveforms
}

// ParseWaveform resolves a waveform name or its common abbreviation
func ParseWaveform(s string) (Waveform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sine", "sin":
		return Sine, true
	case "square", "squ", "sq":
		return Square, true
	case "sawtooth", "saw":
		return Sawtooth, true
	case "triangle", "tri":
		return Triangle, true
	}
	return Sine, false
}

// Sample evaluates waveform w at phase p (0.0 to 1.0) and returns -1.0 to 1.0.
// Unknown waveforms are silent.
func Sample(p float64, w Waveform) float64 {
	switch w {
	case Sine:
		return math.Sin(2.0 * math.Pi * p)
	case Square:
		// Square wave: _|-|_|-|
		if p < 0.5 {
			return 1.0
		}
		return -1.0
	case Sawtooth:
		// Sawtooth wave: /|/|/|
		return 2.0*p - 1.0
	case Triangle:
		// Triangle wave: /\/\/\
		if p < 0.5 {
			return 4.0*p - 1.0
		}
		return 3.0 - 4.0*p
	default:
		return 0
	}
}

// Oscillator tracks phase for one voice. The sample rate is fixed at creation.
type Oscillator struct {
	Phase      float64
	SampleRate int
}

// NewOscillator creates a new oscillator at phase zero
func NewOscillator(sampleRate int) *Oscillator {
	return &Oscillator{SampleRate: sampleRate}
}

// Advance moves the phase forward by freq/SampleRate and wraps it into [0, 1)
func (o *Oscillator) Advance(freq float64) float64 {
	o.Phase += freq / float64(o.SampleRate)
	if o.Phase >= 1.0 {
		o.Phase -= math.Floor(o.Phase)
	}
	// Float rounding can leave exactly 1.0 after the subtraction above.
	if o.Phase >= 1.0 || o.Phase < 0 {
		o.Phase = 0
	}
	return o.Phase
}

// Reset resets the oscillator phase
func (o *Oscillator) Reset() {
	o.Phase = 0
}
