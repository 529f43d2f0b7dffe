package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClock(steps ...time.Duration) func() time.Duration {
	var t time.Duration
	i := 0
	return func() time.Duration {
		if i < len(steps) {
			t += steps[i]
			i++
		}
		return t
	}
}

func TestFrameStatsDisabled(t *testing.T) {
	s := newFrameStats(0)
	assert.Nil(t, s)
	_, ok := s.frame()
	assert.False(t, ok)
}

func TestFrameStatsReport(t *testing.T) {
	s := newFrameStats(time.Second)
	require.NotNil(t, s)
	ms := time.Millisecond
	s.now = fakeClock(0, 200*ms, 300*ms, 500*ms, 100*ms)

	_, ok := s.frame()
	assert.False(t, ok, "first frame only starts the window")
	_, ok = s.frame()
	assert.False(t, ok)
	_, ok = s.frame()
	assert.False(t, ok)

	report, ok := s.frame()
	require.True(t, ok)
	assert.Equal(t, 3, report.Frames)
	assert.Equal(t, 200*ms, report.Min)
	assert.Equal(t, 500*ms, report.Max)
	assert.Equal(t, time.Second/3, report.Avg)
	assert.InDelta(t, 3.0, report.FPS, 1e-9)

	// the next window starts fresh
	_, ok = s.frame()
	assert.False(t, ok)
	assert.Equal(t, 1, s.frames)
	assert.Equal(t, 100*ms, s.min)
}
