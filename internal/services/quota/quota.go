// Package quota tracks per-provider request budgets as fixed windows:
// requests-per-minute and requests-per-day. Counters live in memory; a
// window resets the first time it is consulted after expiry.
package quota

import (
	"sync"
	"time"
)

const idleEvictAfter = 48 * time.Hour

type window struct {
	minuteStart time.Time
	minuteCount int
	dayStart    time.Time
	dayCount    int
}

// Limiter holds the fixed-window counters for every provider.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	stop    chan struct{}
}

// NewLimiter creates a limiter and starts its idle-entry cleanup loop.
func NewLimiter() *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow reports whether the provider has budget left in both windows.
// Limits <= 0 mean unlimited for that window.
func (l *Limiter) Allow(provider string, rpm, rpd int) bool {
	if rpm <= 0 && rpd <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.roll(provider)
	if rpm > 0 && w.minuteCount >= rpm {
		return false
	}
	if rpd > 0 && w.dayCount >= rpd {
		return false
	}
	return true
}

// Record counts one issued request against both of the provider's windows.
func (l *Limiter) Record(provider string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.roll(provider)
	w.minuteCount++
	w.dayCount++
}

// Remaining returns how many requests are left in the minute and day windows.
// A negative value means unlimited.
func (l *Limiter) Remaining(provider string, rpm, rpd int) (minute, day int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.roll(provider)
	minute, day = -1, -1
	if rpm > 0 {
		minute = max(rpm-w.minuteCount, 0)
	}
	if rpd > 0 {
		day = max(rpd-w.dayCount, 0)
	}
	return minute, day
}

// Close stops the cleanup loop.
func (l *Limiter) Close() {
	close(l.stop)
}

// roll fetches the provider window, resetting any expired counters.
// Caller must hold l.mu.
func (l *Limiter) roll(provider string) *window {
	now := l.now()

	w, ok := l.windows[provider]
	if !ok {
		w = &window{minuteStart: now, dayStart: now}
		l.windows[provider] = w
		return w
	}

	if now.Sub(w.minuteStart) >= time.Minute {
		w.minuteStart = now
		w.minuteCount = 0
	}
	if now.Sub(w.dayStart) >= 24*time.Hour {
		w.dayStart = now
		w.dayCount = 0
	}
	return w
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for provider, w := range l.windows {
				if now.Sub(w.dayStart) > idleEvictAfter {
					delete(l.windows, provider)
				}
			}
			l.mu.Unlock()
		}
	}
}
