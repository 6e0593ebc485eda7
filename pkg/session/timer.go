// Package session limits how long a listening session plays
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/ossrs/go-oryx-lib/logger"

	"github.com/oisee/freqengine/pkg/synth"
)

// Transport is the part of the engine control path a session drives
type Transport interface {
	State() synth.PlaybackState
	Stop()
	SetFrequency(hz float64)
}

// Timer counts playing time only; paused and stopped time is not charged.
// When the budget is spent it stops the engine.
//
// A sequence timer also walks its segments, retuning the engine whenever
// playing time crosses into the next one.
type Timer struct {
	ID string

	ctx       context.Context
	transport Transport
	segments  []Segment

	mu       sync.Mutex
	duration time.Duration // zero means unlimited
	elapsed  time.Duration
	last     time.Time
	segment  int
	done     bool
}

// New creates a session timer for t
func New(ctx context.Context, t Transport, d time.Duration) *Timer {
	s := &Timer{
		ID:        uuid.NewString(),
		duration:  d,
		ctx:       logger.WithContext(ctx),
		transport: t,
	}
	logger.Tf(s.ctx, "Session %v created, duration=%v", s.ID, d)
	return s
}

// NewSequence creates a timer that plays segs in order and lasts their total
// length. The engine is tuned to the first segment right away.
func NewSequence(ctx context.Context, t Transport, segs []Segment) (*Timer, error) {
	if len(segs) == 0 {
		return nil, errors.New("empty sequence")
	}
	s := &Timer{
		ID:        uuid.NewString(),
		duration:  Total(segs),
		ctx:       logger.WithContext(ctx),
		transport: t,
		segments:  append([]Segment(nil), segs...),
	}
	t.SetFrequency(segs[0].Hz)
	logger.Tf(s.ctx, "Session %v created, segments=%v, duration=%v", s.ID, len(segs), s.duration)
	return s, nil
}

// Tick charges the time since the previous tick if the engine is playing and
// reports whether the session has finished
func (s *Timer) Tick(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return true
	}
	if !s.last.IsZero() && s.transport.State() == synth.Playing && now.After(s.last) {
		s.elapsed += now.Sub(s.last)
	}
	s.last = now

	if len(s.segments) > 0 && s.elapsed < s.duration {
		if i := segmentAt(s.segments, s.elapsed); i != s.segment {
			s.segment = i
			s.transport.SetFrequency(s.segments[i].Hz)
			logger.Tf(s.ctx, "Session %v segment %v/%v %v at %v",
				s.ID, i+1, len(s.segments), s.segments[i].Label, s.elapsed)
		}
	}

	if s.duration > 0 && s.elapsed >= s.duration {
		s.transport.Stop()
		s.done = true
		logger.Tf(s.ctx, "Session %v complete, played=%v", s.ID, s.elapsed)
	}
	return s.done
}

// Elapsed returns the playing time charged so far
func (s *Timer) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Remaining returns the playing time left, or zero for unlimited sessions
func (s *Timer) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duration <= 0 || s.elapsed >= s.duration {
		return 0
	}
	return s.duration - s.elapsed
}

// Progress returns the fraction of the session played, 0 for unlimited sessions
func (s *Timer) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duration <= 0 {
		return 0
	}
	return min(1, float64(s.elapsed)/float64(s.duration))
}

func (s *Timer) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Restart clears the charged time so the same timer can run again
func (s *Timer) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed, s.last, s.done, s.segment = 0, time.Time{}, false, 0
	if len(s.segments) > 0 {
		s.transport.SetFrequency(s.segments[0].Hz)
	}
	logger.Tf(s.ctx, "Session %v restarted", s.ID)
}

// Duration returns the session length, zero for unlimited
func (s *Timer) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// SetDuration changes the length of a single-frequency session. Sequence
// sessions keep the total of their segments.
func (s *Timer) SetDuration(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.segments) > 0 || d < 0 {
		return
	}
	s.duration = d
	logger.Tf(s.ctx, "Session %v duration=%v", s.ID, d)
}

// Segments returns the segments of a sequence session, nil in single mode
func (s *Timer) Segments() []Segment {
	return s.segments
}

// Segment returns the index and value of the segment playing now. ok is
// false in single mode.
func (s *Timer) Segment() (i int, seg Segment, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.segments) == 0 {
		return 0, Segment{}, false
	}
	return s.segment, s.segments[s.segment], true
}

// Run ticks every interval until the session finishes or ctx is done
func (s *Timer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Tick(time.Now())
	for {
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "session %v", s.ID)
		case now := <-ticker.C:
			if s.Tick(now) {
				return nil
			}
		}
	}
}
