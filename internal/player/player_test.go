package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/lockbeam/internal/emitter"
	"github.com/sweeney/lockbeam/internal/morse"
)

// blockingSleeper parks every Sleep call until the context is cancelled or
// release is closed. Used to hold a transmission mid-flight.
type blockingSleeper struct {
	started chan struct{} // receives one value per Sleep call
	release chan struct{}
	once    sync.Once
}

func newBlockingSleeper() *blockingSleeper {
	return &blockingSleeper{
		started: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
}

func (b *blockingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	b.started <- struct{}{}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.release:
		return nil
	}
}

func (b *blockingSleeper) Release() {
	b.once.Do(func() { close(b.release) })
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("transmission did not complete")
	}
}

func TestPlayCompletesSequence(t *testing.T) {
	sleeper := NewFakeSleeper()
	p := NewWithSleeper(sleeper)
	em := emitter.NewFakeEmitter()
	pulses := morse.Encode("SOS", 60*time.Millisecond)

	var doneErr error
	doneCh := make(chan struct{})
	h, err := p.Play(context.Background(), pulses, em, func(err error) {
		doneErr = err
		close(doneCh)
	})
	if err != nil {
		t.Fatalf("Play returned error: %v", err)
	}

	waitDone(t, h)
	<-doneCh

	if doneErr != nil {
		t.Errorf("completion callback got error: %v", doneErr)
	}
	if err := h.Err(); err != nil {
		t.Errorf("handle error: %v", err)
	}

	// Every pulse toggles once, plus the final forced off.
	states := em.States()
	if len(states) != len(pulses)+1 {
		t.Fatalf("expected %d Set calls, got %d", len(pulses)+1, len(states))
	}
	for i, pulse := range pulses {
		if states[i] != pulse.On {
			t.Errorf("Set call %d = %v, want %v", i, states[i], pulse.On)
		}
	}
	if states[len(states)-1] {
		t.Error("final Set call should force the emitter off")
	}

	// Slept durations mirror the pulse sequence exactly.
	if got, want := sleeper.TotalSlept(), morse.TotalDuration(pulses); got != want {
		t.Errorf("total slept = %v, want %v", got, want)
	}
}

func TestPlayBusyRejection(t *testing.T) {
	sleeper := newBlockingSleeper()
	p := NewWithSleeper(sleeper)
	em := emitter.NewFakeEmitter()
	pulses := morse.Encode("SOS", 60*time.Millisecond)

	h, err := p.Play(context.Background(), pulses, em, nil)
	if err != nil {
		t.Fatalf("first Play returned error: %v", err)
	}
	<-sleeper.started

	if !p.Busy() {
		t.Error("Busy should be true while playing")
	}

	if _, err := p.Play(context.Background(), pulses, em, nil); !errors.Is(err, ErrBusy) {
		t.Errorf("second Play should fail with ErrBusy, got %v", err)
	}

	sleeper.Release()
	waitDone(t, h)

	if p.Busy() {
		t.Error("Busy should clear after completion")
	}

	// The player accepts a new transmission once the previous unwound.
	h2, err := p.Play(context.Background(), pulses, em, nil)
	if err != nil {
		t.Fatalf("Play after completion returned error: %v", err)
	}
	waitDone(t, h2)
}

func TestCancelLeavesEmitterOff(t *testing.T) {
	sleeper := newBlockingSleeper()
	p := NewWithSleeper(sleeper)
	em := emitter.NewFakeEmitter()
	pulses := morse.Encode("SOS", 60*time.Millisecond)

	h, err := p.Play(context.Background(), pulses, em, nil)
	if err != nil {
		t.Fatalf("Play returned error: %v", err)
	}

	// First pulse of SOS is ON; cancel while suspended inside it.
	<-sleeper.started
	h.Cancel()

	if !errors.Is(h.Err(), context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", h.Err())
	}

	last, ok := em.Last()
	if !ok {
		t.Fatal("emitter was never toggled")
	}
	if last {
		t.Error("emitter left ON after cancel")
	}

	// Cancel again is a no-op.
	h.Cancel()
}

func TestEmitterErrorAbortsPlayback(t *testing.T) {
	sleeper := NewFakeSleeper()
	p := NewWithSleeper(sleeper)
	em := emitter.NewFakeEmitter()
	em.FailAfter = 3
	pulses := morse.Encode("SOS", 60*time.Millisecond)

	var doneErr error
	doneCh := make(chan struct{})
	h, err := p.Play(context.Background(), pulses, em, func(err error) {
		doneErr = err
		close(doneCh)
	})
	if err != nil {
		t.Fatalf("Play returned error: %v", err)
	}

	waitDone(t, h)
	<-doneCh

	var sigErr *SignalError
	if !errors.As(h.Err(), &sigErr) {
		t.Fatalf("expected *SignalError, got %v", h.Err())
	}
	if !errors.As(doneErr, &sigErr) {
		t.Errorf("completion callback should carry the signal error, got %v", doneErr)
	}

	// The remaining sequence was aborted: far fewer sleeps than pulses.
	if got := len(sleeper.Slept()); got >= len(pulses) {
		t.Errorf("expected aborted playback, slept %d of %d pulses", got, len(pulses))
	}
}

func TestParentContextCancelStopsPlayback(t *testing.T) {
	sleeper := newBlockingSleeper()
	p := NewWithSleeper(sleeper)
	em := emitter.NewFakeEmitter()
	pulses := morse.Encode("A", 70*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	h, err := p.Play(ctx, pulses, em, nil)
	if err != nil {
		t.Fatalf("Play returned error: %v", err)
	}

	<-sleeper.started
	cancel()
	waitDone(t, h)

	if !errors.Is(h.Err(), context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", h.Err())
	}
	if last, ok := em.Last(); ok && last {
		t.Error("emitter left ON after parent cancel")
	}
}

func TestPlayEmptySequence(t *testing.T) {
	p := NewWithSleeper(NewFakeSleeper())
	em := emitter.NewFakeEmitter()

	h, err := p.Play(context.Background(), nil, em, nil)
	if err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	waitDone(t, h)

	if err := h.Err(); err != nil {
		t.Errorf("empty sequence should complete cleanly, got %v", err)
	}
	if last, ok := em.Last(); !ok || last {
		t.Error("empty sequence should still force the emitter off")
	}
}
