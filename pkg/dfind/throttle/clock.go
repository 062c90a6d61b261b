package throttle

import (
	"context"
	"time"
)

// Clock supplies wall time and cancellable sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the system clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// Sleep waits for d or until ctx is done.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sampler reports the CPU time consumed by the process so far.
type Sampler interface {
	CPUTime() (time.Duration, error)
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func() (time.Duration, error)

// CPUTime calls f.
func (f SamplerFunc) CPUTime() (time.Duration, error) { return f() }

// ProcessSampler reads user+system CPU time of the current process.
type ProcessSampler struct{}

// CPUTime implements Sampler.
func (ProcessSampler) CPUTime() (time.Duration, error) {
	return processCPUTime()
}
