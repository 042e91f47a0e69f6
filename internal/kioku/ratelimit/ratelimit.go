// Package ratelimit bounds how many replies a single sender can trigger.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultLimit is the number of addressed replies allowed per sender per
	// window when no explicit limit is configured.
	DefaultLimit = 20

	defaultWindow = time.Minute
)

// Limiter enforces a per-sender sliding-window limit. It holds the call
// timestamps of each sender within the current window and prunes stale
// entries on every call, so memory stays O(limit) per active sender.
//
// Limiter is safe for concurrent use from multiple goroutines.
type Limiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string][]time.Time
	now      func() time.Time
}

// New returns a Limiter that allows at most limit calls per sender within
// window. Non-positive values fall back to DefaultLimit and one minute.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &Limiter{
		limit:    limit,
		window:   window,
		counters: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow records a call for sender and reports whether it is within quota.
func (l *Limiter) Allow(sender string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	valid := l.prune(sender, now)
	if len(valid) >= l.limit {
		l.counters[sender] = valid
		return false
	}
	l.counters[sender] = append(valid, now)
	return true
}

// Remaining returns how many calls sender can still make in the current
// window.
func (l *Limiter) Remaining(sender string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	valid := l.prune(sender, l.now())
	if len(valid) == 0 {
		delete(l.counters, sender)
	} else {
		l.counters[sender] = valid
	}
	if rem := l.limit - len(valid); rem > 0 {
		return rem
	}
	return 0
}

func (l *Limiter) prune(sender string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	existing := l.counters[sender]
	valid := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}
