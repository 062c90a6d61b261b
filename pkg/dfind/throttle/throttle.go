// Package throttle paces CPU-bound work so the process stays under a CPU
// usage ceiling.
//
// Callers invoke Pace after each unit of work (a chunk read, a file hashed).
// Pace measures process CPU time against wall time and sleeps whenever the
// process has used more than its share. Work is only ever delayed, never
// skipped. A single Throttle may be shared by any number of goroutines; the
// ceiling applies to the process as a whole.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jamesainslie/dfind/pkg/dfind/logging"
)

// DefaultWindow bounds how much idle time can be banked as credit.
const DefaultWindow = 2 * time.Second

var logger = logging.Get("throttle")

// Throttle paces units of work.
type Throttle interface {
	// Pace blocks until the caller may continue. It returns ctx.Err() if
	// the context is cancelled while waiting.
	Pace(ctx context.Context) error
}

// Nop is a Throttle that never waits.
type Nop struct{}

// Pace implements Throttle.
func (Nop) Pace(context.Context) error { return nil }

// Stats summarizes the pauses a limiter has inserted.
type Stats struct {
	Paces  int64
	Pauses int64
	Paused time.Duration
}

// CPULimiter keeps process CPU time at or below Limit percent of wall time.
//
// CPU consumed beyond the allowance accrues as debt; Pace sleeps until the
// debt is repaid. Credit for idle time is capped at Window's worth of
// allowance, so a long quiet period cannot fund an unbounded burst.
type CPULimiter struct {
	mu sync.Mutex

	ratio   float64
	window  time.Duration
	clock   Clock
	sampler Sampler

	lastWall time.Time
	lastCPU  time.Duration
	debt     time.Duration
	disabled bool

	stats Stats
}

// Option is a functional option for configuring a CPULimiter.
type Option func(*CPULimiter)

// WithClock sets the clock used for wall time and sleeping.
func WithClock(c Clock) Option {
	return func(l *CPULimiter) {
		l.clock = c
	}
}

// WithSampler sets the source of process CPU time.
func WithSampler(s Sampler) Option {
	return func(l *CPULimiter) {
		l.sampler = s
	}
}

// WithWindow sets the idle-credit window. Values <= 0 are ignored.
func WithWindow(d time.Duration) Option {
	return func(l *CPULimiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// New returns a Throttle enforcing limitPercent. A limit outside (0, 100)
// means no ceiling and yields Nop.
func New(limitPercent int, opts ...Option) Throttle {
	if limitPercent <= 0 || limitPercent >= 100 {
		return Nop{}
	}
	return NewCPULimiter(limitPercent, opts...)
}

// NewCPULimiter returns a limiter for limitPercent, which must be in (0, 100).
func NewCPULimiter(limitPercent int, opts ...Option) *CPULimiter {
	l := &CPULimiter{
		ratio:   float64(limitPercent) / 100,
		window:  DefaultWindow,
		clock:   RealClock{},
		sampler: ProcessSampler{},
	}
	for _, opt := range opts {
		opt(l)
	}

	l.lastWall = l.clock.Now()
	cpu, err := l.sampler.CPUTime()
	if err != nil {
		logger.Warn("cpu sampling unavailable, throttle disabled", "error", err)
		l.disabled = true
	}
	l.lastCPU = cpu
	return l
}

// Limit returns the configured ceiling in percent.
func (l *CPULimiter) Limit() int {
	return int(l.ratio*100 + 0.5)
}

// Pace implements Throttle.
func (l *CPULimiter) Pace(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.stats.Paces++
	if l.disabled {
		return nil
	}

	now := l.clock.Now()
	cpu, err := l.sampler.CPUTime()
	if err != nil {
		logger.Warn("cpu sampling failed, throttle disabled", "error", err)
		l.disabled = true
		return nil
	}

	l.debt += (cpu - l.lastCPU) - l.allowance(now.Sub(l.lastWall))
	if floor := -l.allowance(l.window); l.debt < floor {
		l.debt = floor
	}
	l.lastWall, l.lastCPU = now, cpu

	if l.debt <= 0 {
		return nil
	}

	pause := time.Duration(float64(l.debt) / l.ratio)
	sleepErr := l.clock.Sleep(ctx, pause)

	// Only the wall time that actually passed repays debt.
	after := l.clock.Now()
	slept := after.Sub(now)
	l.debt -= l.allowance(slept)
	l.lastWall = after
	l.stats.Pauses++
	l.stats.Paused += slept

	if sleepErr != nil {
		return fmt.Errorf("throttle pause: %w", sleepErr)
	}
	return nil
}

// allowance is the CPU time permitted during d of wall time.
func (l *CPULimiter) allowance(d time.Duration) time.Duration {
	return time.Duration(float64(d) * l.ratio)
}

// Stats returns a snapshot of the limiter's counters.
func (l *CPULimiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
