package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(start time.Time) (*Limiter, *time.Time) {
	now := start
	l := &Limiter{
		windows: make(map[string]*window),
		now:     func() time.Time { return now },
		stop:    make(chan struct{}),
	}
	return l, &now
}

func TestAllowUnlimited(t *testing.T) {
	l, _ := newTestLimiter(time.Now())
	assert.True(t, l.Allow("gemini", 0, 0))
}

func TestMinuteWindowExhaustionAndReset(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	l, now := newTestLimiter(start)

	for range 3 {
		assert.True(t, l.Allow("groq", 3, 0))
		l.Record("groq")
	}
	assert.False(t, l.Allow("groq", 3, 0))

	// window rolls over after a minute
	*now = start.Add(61 * time.Second)
	assert.True(t, l.Allow("groq", 3, 0))

	minute, day := l.Remaining("groq", 3, 0)
	assert.Equal(t, 3, minute)
	assert.Equal(t, -1, day)
}

func TestDayWindowOutlivesMinuteWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	l, now := newTestLimiter(start)

	for range 5 {
		l.Record("deepseek")
	}

	// minute window resets, day window does not
	*now = start.Add(2 * time.Minute)
	assert.False(t, l.Allow("deepseek", 10, 5))

	minute, day := l.Remaining("deepseek", 10, 5)
	assert.Equal(t, 10, minute)
	assert.Equal(t, 0, day)

	// day window resets after 24h
	*now = start.Add(25 * time.Hour)
	assert.True(t, l.Allow("deepseek", 10, 5))
}

func TestProvidersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Now())

	l.Record("groq")
	l.Record("groq")
	assert.False(t, l.Allow("groq", 2, 0))
	assert.True(t, l.Allow("cerebras", 2, 0))
}
