// Package rate throttles join attempts so a misbehaving peer on the
// local network cannot churn the lobby.
package rate

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// JoinLimiter is a per-address sliding window rate limiter.
//
// Multiple goroutines may invoke methods on a JoinLimiter simultaneously.
type JoinLimiter struct {
	window  time.Duration
	limit   int
	history map[string][]time.Time
	mu      sync.Mutex
	clock   clock.Clock
}

func NewJoinLimiter(window time.Duration, limit int) *JoinLimiter {
	return NewJoinLimiterWithClock(window, limit, clock.New())
}

func NewJoinLimiterWithClock(window time.Duration, limit int, clk clock.Clock) *JoinLimiter {
	return &JoinLimiter{
		window:  window,
		limit:   limit,
		history: map[string][]time.Time{},
		clock:   clk,
	}
}

// Allow checks whether addr may attempt a join now and records the
// attempt if so. A non-positive limit disables limiting.
func (l *JoinLimiter) Allow(addr string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	history := l.slide(addr, now)

	if len(history) >= l.limit {
		l.store(addr, history)
		return false
	}

	l.store(addr, append(history, now))
	return true
}

func (l *JoinLimiter) slide(addr string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	history := l.history[addr]
	i := 0
	for i < len(history) && history[i].Before(cutoff) {
		i++
	}
	return append(history[:0:0], history[i:]...)
}

func (l *JoinLimiter) store(addr string, history []time.Time) {
	if len(history) == 0 {
		delete(l.history, addr)
		return
	}
	l.history[addr] = history
}

// Slots returns the remaining attempts for addr in the current window.
func (l *JoinLimiter) Slots(addr string) int {
	if l.limit <= 0 {
		return 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit - len(l.slide(addr, l.clock.Now()))
}
