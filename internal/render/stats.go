package render

import (
	"time"

	"github.com/loov/hrtime"
)

// statsReport summarises frame times over one reporting window.
type statsReport struct {
	Frames int
	FPS    float64
	Avg    time.Duration
	Min    time.Duration
	Max    time.Duration
}

// frameStats measures time between presented frames. A nil *frameStats is
// disabled.
type frameStats struct {
	interval time.Duration
	now      func() time.Duration

	windowStart time.Duration
	last        time.Duration
	started     bool

	frames   int
	total    time.Duration
	min, max time.Duration
}

func newFrameStats(interval time.Duration) *frameStats {
	if interval <= 0 {
		return nil
	}
	return &frameStats{interval: interval, now: hrtime.Now}
}

// frame records a presented frame and returns a report once per interval.
func (s *frameStats) frame() (statsReport, bool) {
	if s == nil {
		return statsReport{}, false
	}
	t := s.now()
	if !s.started {
		s.started = true
		s.windowStart = t
		s.last = t
		return statsReport{}, false
	}

	d := t - s.last
	s.last = t
	if s.frames == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.frames++
	s.total += d

	elapsed := t - s.windowStart
	if elapsed < s.interval {
		return statsReport{}, false
	}

	report := statsReport{
		Frames: s.frames,
		FPS:    float64(s.frames) / elapsed.Seconds(),
		Avg:    s.total / time.Duration(s.frames),
		Min:    s.min,
		Max:    s.max,
	}
	s.windowStart = t
	s.frames = 0
	s.total = 0
	s.min, s.max = 0, 0
	return report, true
}
