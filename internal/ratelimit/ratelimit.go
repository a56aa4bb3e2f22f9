// Package ratelimit enforces a minimum interval between provider calls
// across every request in the process.
package ratelimit

import (
	"sync"
	"time"

	"github.com/valpere/bubbletran/internal/clock"
)

const DefaultInterval = 1200 * time.Millisecond

// Limiter serializes callers so that no two calls start closer together
// than the configured interval. The mutex is held while sleeping.
type Limiter struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
	clock    clock.Clock
}

// New returns a limiter. A nil clock uses the system clock; a non-positive
// interval disables waiting.
func New(interval time.Duration, c clock.Clock) *Limiter {
	if c == nil {
		c = clock.Real{}
	}
	return &Limiter{interval: interval, clock: c}
}

func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until the interval since the previous call start has passed,
// then records the current time as the new call start. It returns how long
// it slept.
func (l *Limiter) Wait() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	var slept time.Duration
	if !l.last.IsZero() && l.interval > 0 {
		elapsed := l.clock.Now().Sub(l.last)
		if elapsed < l.interval {
			slept = l.interval - elapsed
			l.clock.Sleep(slept)
		}
	}
	l.last = l.clock.Now()
	return slept
}
