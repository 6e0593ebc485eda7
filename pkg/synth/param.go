package synth

import (
	"math"
	"time"
)

// Param is a smoothed control value. Changes to the target are reached by a
// linear ramp of Window samples so the signal never steps.
type Param struct {
	current   float64
	target    float64
	remaining int
	window    int
	lo, hi    float64
}

// NewParam creates a parameter resting at v, clamped to [lo, hi]
func NewParam(v, lo, hi float64, window int) *Param {
	p := &Param{lo: lo, hi: hi}
	p.SetWindow(window)
	p.Reset(v)
	return p
}

// RampSamples converts a ramp duration to a whole number of samples, at least one
func RampSamples(d time.Duration, sampleRate int) int {
	n := int(math.Round(d.Seconds() * float64(sampleRate)))
	if n < 1 {
		n = 1
	}
	return n
}

// SetWindow sets the ramp length used by subsequent SetTarget calls
func (p *Param) SetWindow(n int) {
	if n < 1 {
		n = 1
	}
	p.window = n
}

// Clamp limits v to the parameter range. NaN maps to the current target.
func (p *Param) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return p.target
	}
	if v < p.lo {
		return p.lo
	}
	if v > p.hi {
		return p.hi
	}
	return v
}

// SetTarget clamps v and starts a ramp towards it from the current value
func (p *Param) SetTarget(v float64) {
	p.target = p.Clamp(v)
	p.remaining = p.window
}

// Reset jumps straight to v without ramping
func (p *Param) Reset(v float64) {
	v = p.Clamp(v)
	p.current = v
	p.target = v
	p.remaining = 0
}

// Advance moves one sample along the ramp and returns the new current value
func (p *Param) Advance() float64 {
	if p.remaining <= 0 {
		return p.current
	}
	p.current += (p.target - p.current) / float64(p.remaining)
	p.remaining--
	if p.remaining == 0 {
		p.current = p.target
	}
	return p.current
}

func (p *Param) Current() float64 { return p.current }
func (p *Param) Target() float64  { return p.target }
func (p *Param) Remaining() int   { return p.remaining }
func (p *Param) Window() int      { return p.window }
