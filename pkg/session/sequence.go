package session

import (
	"strings"
	"time"

	"github.com/ossrs/go-oryx-lib/errors"

	"github.com/oisee/freqengine/pkg/preset"
)

const (
	// MinSegment is the shortest segment a sequence accepts
	MinSegment = 10 * time.Second
	// DefaultDuration is the length of a single-frequency session
	DefaultDuration = 3 * time.Minute
)

// DurationPresets are the session lengths offered by the control panel
var DurationPresets = []time.Duration{
	time.Minute, 3 * time.Minute, 5 * time.Minute, 10 * time.Minute,
}

// NextDuration returns the preset following d, wrapping to the first one
func NextDuration(d time.Duration) time.Duration {
	for i, p := range DurationPresets {
		if p == d {
			return DurationPresets[(i+1)%len(DurationPresets)]
		}
	}
	return DurationPresets[0]
}

// Segment is one step of a sequence session
type Segment struct {
	Label    string
	Hz       float64
	Duration time.Duration
}

// ParseSequence parses "528:1m,639:2m,Om:30s". Each frequency is a preset
// label, a note or a number of Hz. Durations below MinSegment are raised to it.
func ParseSequence(s string) ([]Segment, error) {
	var segs []Segment
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		freq, dur, ok := strings.Cut(item, ":")
		if !ok {
			return nil, errors.Errorf("segment %v has no duration", item)
		}
		freq = strings.TrimSpace(freq)
		hz, ok := preset.Resolve(freq)
		if !ok {
			return nil, errors.Errorf("segment %v unknown frequency %v", item, freq)
		}
		d, err := time.ParseDuration(strings.TrimSpace(dur))
		if err != nil {
			return nil, errors.Wrapf(err, "segment %v", item)
		}

		segs = append(segs, Segment{Label: freq, Hz: hz, Duration: max(d, MinSegment)})
	}

	if len(segs) == 0 {
		return nil, errors.New("empty sequence")
	}
	return segs, nil
}

// Distribute spreads total evenly over segs in whole seconds, never below
// MinSegment. segs is not modified.
func Distribute(segs []Segment, total time.Duration) []Segment {
	if len(segs) == 0 {
		return nil
	}
	each := (total / time.Duration(len(segs))).Truncate(time.Second)
	each = max(each, MinSegment)

	out := make([]Segment, len(segs))
	for i, s := range segs {
		s.Duration = each
		out[i] = s
	}
	return out
}

// Total returns the summed length of segs
func Total(segs []Segment) time.Duration {
	var d time.Duration
	for _, s := range segs {
		d += s.Duration
	}
	return d
}

// segmentAt returns the index of the segment playing at elapsed, clamped to the last one
func segmentAt(segs []Segment, elapsed time.Duration) int {
	var end time.Duration
	for i, s := range segs {
		end += s.Duration
		if elapsed < end {
			return i
		}
	}
	return len(segs) - 1
}
