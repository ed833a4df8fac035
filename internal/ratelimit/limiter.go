// Package ratelimit caps how many replies go out per window.
package ratelimit

import "time"

// Limiter is a fixed-window counter. When a window expires the count drops
// to zero and the next window starts at the time of the check, so a burst at
// the end of one window followed by a burst at the start of the next can
// admit up to twice the cap within one window length.
//
// Limiter is owned by the reply loop and is not safe for concurrent use.
type Limiter struct {
	limit  int
	window time.Duration
	count  int
	start  time.Time
}

// New returns a limiter admitting limit sends per window, with its first
// window starting at now.
func New(limit int, window time.Duration, now time.Time) *Limiter {
	return &Limiter{limit: limit, window: window, start: now}
}

// roll starts a new window if the current one has expired.
func (l *Limiter) roll(now time.Time) {
	if now.Sub(l.start) >= l.window {
		l.count = 0
		l.start = now
	}
}

// Allow reports whether another send fits in the current window.
func (l *Limiter) Allow(now time.Time) bool {
	l.roll(now)
	return l.count < l.limit
}

// Record counts a send.
func (l *Limiter) Record(now time.Time) {
	l.roll(now)
	l.count++
}

// SetCap changes the cap without resetting the window.
func (l *Limiter) SetCap(n int) {
	l.limit = n
}

// SetWindow changes the window length; the current window keeps its start.
func (l *Limiter) SetWindow(d time.Duration) {
	l.window = d
}

// Count returns sends recorded in the current window.
func (l *Limiter) Count() int {
	return l.count
}

// Cap returns the configured cap.
func (l *Limiter) Cap() int {
	return l.limit
}

// ResetsAt returns when the current window ends.
func (l *Limiter) ResetsAt() time.Time {
	return l.start.Add(l.window)
}
