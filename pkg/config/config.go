// Package config loads engine settings from a .env file and the environment
package config

import (
	"context"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/ossrs/go-oryx-lib/logger"

	"github.com/oisee/freqengine/pkg/preset"
	"github.com/oisee/freqengine/pkg/session"
	"github.com/oisee/freqengine/pkg/synth"
)

// DefaultEnvFile is read when present; it is fine for it to be missing
const DefaultEnvFile = ".env"

// Config holds everything needed to build and run an engine
type Config struct {
	SampleRate int
	Ramp       time.Duration
	Frequency  float64
	Amplitude  float64
	Waveform   synth.Waveform
	Binaural   bool
	Beat       float64
	Session    time.Duration // zero means unlimited
	Buffer     time.Duration // device latency

	// Sequence replaces Session with timed frequency segments when set
	Sequence []session.Segment
	// Templates is the JSON file holding saved templates
	Templates string
}

// Default returns the settings used when nothing is configured
func Default() *Config {
	return &Config{
		SampleRate: synth.DefaultSampleRate,
		Ramp:       synth.DefaultRamp,
		Frequency:  432,
		Amplitude:  synth.DefaultAmplitude,
		Waveform:   synth.Sine,
		Beat:       10,
		Buffer:     20 * time.Millisecond,
		Templates:  DefaultTemplateFile,
	}
}

// Load reads envFile into the process environment and parses the FREQ_*
// variables. An empty envFile means DefaultEnvFile, which may be absent.
func Load(ctx context.Context, envFile string) (*Config, error) {
	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}

	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.Wrapf(err, "load %v", envFile)
		}
		logger.Tf(ctx, "load env file %v ok", envFile)
	} else if explicit {
		return nil, errors.Wrapf(err, "stat %v", envFile)
	}

	c := Default()
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, errors.Wrapf(err, "parse env")
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validate")
	}

	logger.Tf(ctx, "config rate=%v, ramp=%v, freq=%v, amp=%v, wave=%v, binaural=%v/%v, session=%v, sequence=%v, buffer=%v",
		c.SampleRate, c.Ramp, c.Frequency, c.Amplitude, c.Waveform, c.Binaural, c.Beat, c.Session, len(c.Sequence), c.Buffer)
	return c, nil
}

// ApplyEnv overrides fields from the variables that getenv reports as set
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("FREQ_SAMPLE_RATE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "FREQ_SAMPLE_RATE=%v", v)
		}
		c.SampleRate = n
	}
	if v := getenv("FREQ_RAMP_MS"); v != "" {
		ms, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "FREQ_RAMP_MS=%v", v)
		}
		c.Ramp = time.Duration(ms * float64(time.Millisecond))
	}
	if v := getenv("FREQ_PRESET"); v != "" {
		if err := c.SetFrequency(v); err != nil {
			return errors.Wrapf(err, "FREQ_PRESET")
		}
	}
	if v := getenv("FREQ_FREQUENCY"); v != "" {
		if err := c.SetFrequency(v); err != nil {
			return errors.Wrapf(err, "FREQ_FREQUENCY")
		}
	}
	if v := getenv("FREQ_AMPLITUDE"); v != "" {
		a, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "FREQ_AMPLITUDE=%v", v)
		}
		c.Amplitude = a
	}
	if v := getenv("FREQ_WAVEFORM"); v != "" {
		w, ok := synth.ParseWaveform(v)
		if !ok {
			return errors.Errorf("FREQ_WAVEFORM=%v unknown", v)
		}
		c.Waveform = w
	}
	if v := getenv("FREQ_BEAT"); v != "" {
		if err := c.SetBeat(v); err != nil {
			return errors.Wrapf(err, "FREQ_BEAT")
		}
	}
	if v := getenv("FREQ_SESSION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "FREQ_SESSION=%v", v)
		}
		c.Session = d
	}
	if v := getenv("FREQ_BUFFER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "FREQ_BUFFER=%v", v)
		}
		c.Buffer = d
	}
	if v := getenv("FREQ_SEQUENCE"); v != "" {
		if err := c.SetSequence(v, getenv("FREQ_SEQUENCE_TOTAL")); err != nil {
			return errors.Wrapf(err, "FREQ_SEQUENCE")
		}
	}
	if v := getenv("FREQ_TEMPLATES"); v != "" {
		c.Templates = v
	}
	return nil
}

// SetSequence parses a segment list such as "528:1m,639:2m". A non-empty
// total spreads that duration evenly over the segments.
func (c *Config) SetSequence(s, total string) error {
	segs, err := session.ParseSequence(s)
	if err != nil {
		return errors.Wrapf(err, "sequence %v", s)
	}
	if total != "" {
		d, err := time.ParseDuration(total)
		if err != nil {
			return errors.Wrapf(err, "sequence total %v", total)
		}
		segs = session.Distribute(segs, d)
	}
	c.Sequence = segs
	return nil
}

// SetFrequency accepts a preset label, a note name or a number of Hz
func (c *Config) SetFrequency(s string) error {
	hz, ok := preset.Resolve(s)
	if !ok {
		return errors.Errorf("unknown frequency %v", s)
	}
	c.Frequency = hz
	return nil
}

// SetBeat accepts a beat preset label or a number of Hz, and enables binaural
// output. "off" disables it.
func (c *Config) SetBeat(s string) error {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "off") {
		c.Binaural = false
		return nil
	}
	if b, ok := preset.LookupBeat(s); ok {
		c.Beat, c.Binaural = b.Hz, true
		return nil
	}
	hz, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.Wrapf(err, "beat %v", s)
	}
	c.Beat, c.Binaural = hz, true
	return nil
}

// Validate rejects settings the CLI should not silently clamp. The engine
// itself clamps everything; these are user errors worth reporting.
func (c *Config) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return errors.Errorf("sample rate %v out of 8000~192000", c.SampleRate)
	}
	if c.Ramp < 2*time.Millisecond || c.Ramp > 10*time.Millisecond {
		return errors.Errorf("ramp %v out of 2ms~10ms", c.Ramp)
	}
	if math.IsNaN(c.Frequency) || c.Frequency <= 0 || c.Frequency >= float64(c.SampleRate)/2 {
		return errors.Errorf("frequency %v out of (0, %v)", c.Frequency, c.SampleRate/2)
	}
	if math.IsNaN(c.Amplitude) || c.Amplitude < 0 || c.Amplitude > 1 {
		return errors.Errorf("amplitude %v out of 0~1", c.Amplitude)
	}
	if math.IsNaN(c.Beat) || c.Beat < 0 || c.Beat > synth.MaxBeat {
		return errors.Errorf("beat %v out of 0~%v", c.Beat, synth.MaxBeat)
	}
	if c.Session < 0 {
		return errors.Errorf("negative session %v", c.Session)
	}
	if c.Buffer <= 0 {
		return errors.Errorf("buffer %v must be positive", c.Buffer)
	}
	for i, seg := range c.Sequence {
		if seg.Hz <= 0 || seg.Hz >= float64(c.SampleRate)/2 {
			return errors.Errorf("segment %v frequency %v out of (0, %v)", i, seg.Hz, c.SampleRate/2)
		}
	}
	return nil
}

// NewEngine builds an engine from the settings
func (c *Config) NewEngine() *synth.Engine {
	e := synth.New(c.SampleRate,
		synth.WithRamp(c.Ramp),
		synth.WithFrequency(c.Frequency),
		synth.WithAmplitude(c.Amplitude),
		synth.WithWaveform(c.Waveform),
	)
	e.SetBinaural(c.Binaural, c.Beat)
	return e
}

// NewSession builds the session timer for e: a sequence when segments are
// configured, a fixed length when Session is set, and nil for unlimited play.
func (c *Config) NewSession(ctx context.Context, e *synth.Engine) (*session.Timer, error) {
	if len(c.Sequence) > 0 {
		return session.NewSequence(ctx, e, c.Sequence)
	}
	if c.Session > 0 {
		return session.New(ctx, e, c.Session), nil
	}
	return nil, nil
}
