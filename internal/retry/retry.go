// Package retry runs an operation under a bounded, growing backoff. Delays
// grow by a multiplier and can be raised by a server-provided retry-after
// hint carried on the error.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/valpere/bubbletran/internal/clock"
)

const (
	DefaultMaxAttempts = 3
	DefaultMultiplier  = 1.5
)

// Classified is implemented by errors that know whether they are worth
// retrying. Errors that do not implement it are treated as transient.
type Classified interface {
	Retryable() bool
	RetryAfterHint() time.Duration
}

type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	// Clock drives the waits between attempts. Nil means the system clock.
	Clock clock.Clock
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Multiplier <= 0 {
		p.Multiplier = DefaultMultiplier
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	return p
}

// Attempt is the result of one call. Wait is the delay slept after it,
// zero for the final attempt.
type Attempt struct {
	Number int
	Err    error
	Wait   time.Duration
}

// Failure is returned once every attempt has been used, a non-retryable
// error occurred, or the context ended.
type Failure struct {
	Attempts []Attempt
	Err      error
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed after %d attempt(s)", len(f.Attempts))
	if f.Err != nil {
		fmt.Fprintf(&b, ": %v", f.Err)
	}
	return b.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// Outcome records every attempt of one Do call. Err is a *Failure when the
// operation never succeeded.
type Outcome struct {
	Attempts []Attempt
	Err      error
}

func (o Outcome) Calls() int { return len(o.Attempts) }

// hintBackOff sleeps the current delay and then grows it, raising the next
// delay to a pending retry-after hint if that is longer.
type hintBackOff struct {
	initial    time.Duration
	multiplier float64
	delay      time.Duration
	hint       time.Duration
}

func (b *hintBackOff) Reset() {
	b.delay = b.initial
	b.hint = 0
}

func (b *hintBackOff) NextBackOff() time.Duration {
	current := b.delay
	next := time.Duration(float64(b.delay) * b.multiplier)
	if b.hint > next {
		next = b.hint
	}
	b.delay = next
	b.hint = 0
	return current
}

// clockTimer adapts a clock.Clock to backoff.Timer.
type clockTimer struct {
	clock clock.Clock
	c     chan time.Time
}

func newClockTimer(c clock.Clock) *clockTimer {
	return &clockTimer{clock: c, c: make(chan time.Time, 1)}
}

func (t *clockTimer) Start(d time.Duration) {
	t.clock.Sleep(d)
	select {
	case t.c <- t.clock.Now():
	default:
	}
}

func (t *clockTimer) Stop() {}

func (t *clockTimer) C() <-chan time.Time { return t.c }

// Do calls op until it succeeds or the policy gives up. Errors whose
// Retryable method reports false stop the loop immediately.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, Outcome) {
	p = p.withDefaults()

	b := &hintBackOff{initial: p.InitialDelay, multiplier: p.Multiplier}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)

	var timer backoff.Timer
	if p.Clock != nil {
		if _, isReal := p.Clock.(clock.Real); !isReal {
			timer = newClockTimer(p.Clock)
		}
	}

	var attempts []Attempt
	operation := func() (T, error) {
		res, err := op(ctx)
		attempts = append(attempts, Attempt{Number: len(attempts) + 1, Err: err})
		if err == nil {
			return res, nil
		}
		var c Classified
		if errors.As(err, &c) {
			if !c.Retryable() {
				return res, backoff.Permanent(err)
			}
			b.hint = c.RetryAfterHint()
		}
		return res, err
	}
	notify := func(_ error, wait time.Duration) {
		if n := len(attempts); n > 0 {
			attempts[n-1].Wait = wait
		}
	}

	res, err := backoff.RetryNotifyWithTimerAndData(operation, policy, notify, timer)
	out := Outcome{Attempts: attempts}
	if err != nil {
		out.Err = &Failure{Attempts: attempts, Err: err}
	}
	return res, out
}
