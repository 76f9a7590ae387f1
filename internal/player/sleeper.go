package player

import (
	"context"
	"sync"
	"time"
)

// Sleeper suspends the calling goroutine for a duration, waking early if
// the context is cancelled. Injected so tests play sequences instantly.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// realSleeper sleeps on the monotonic clock via time.Timer.
type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FakeSleeper records requested durations and returns immediately.
// It still honours cancellation so cancel paths stay testable.
type FakeSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

// NewFakeSleeper creates a FakeSleeper.
func NewFakeSleeper() *FakeSleeper {
	return &FakeSleeper{}
}

// Sleep records the duration without waiting.
func (f *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.slept = append(f.slept, d)
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Slept returns a copy of all recorded sleep durations.
func (f *FakeSleeper) Slept() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.slept))
	copy(out, f.slept)
	return out
}

// TotalSlept returns the sum of all recorded sleep durations.
func (f *FakeSleeper) TotalSlept() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total time.Duration
	for _, d := range f.slept {
		total += d
	}
	return total
}
