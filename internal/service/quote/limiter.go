package quote

import (
	"sync"
	"time"
)

// rateLimiter tracks provider calls against a rolling per-window quota and a
// daily ceiling. Allow consumes one call when permitted; a refusal never
// reaches the network.
type rateLimiter struct {
	mu           sync.Mutex
	window       time.Duration
	maxPerWindow int
	dailyLimit   int

	windowStart time.Time
	windowCount int
	dayStart    time.Time
	dayCount    int
}

func newRateLimiter(window time.Duration, maxPerWindow, dailyLimit int) *rateLimiter {
	return &rateLimiter{
		window:       window,
		maxPerWindow: maxPerWindow,
		dailyLimit:   dailyLimit,
	}
}

func (l *rateLimiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.windowCount = 0
	}
	if l.dayStart.IsZero() || now.Sub(l.dayStart) >= 24*time.Hour {
		l.dayStart = now
		l.dayCount = 0
	}

	if l.windowCount >= l.maxPerWindow {
		return false
	}
	if l.dailyLimit > 0 && l.dayCount >= l.dailyLimit {
		return false
	}

	l.windowCount++
	l.dayCount++

	return true
}
