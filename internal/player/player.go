// Package player plays Morse pulse sequences through a signal emitter on a
// background goroutine. At most one transmission is in flight at a time;
// the emitter is guaranteed to be left off on every exit path (completion,
// cancellation, or emitter failure).
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sweeney/lockbeam/internal/emitter"
	"github.com/sweeney/lockbeam/internal/morse"
)

// ErrBusy is returned by Play while a previous transmission is still in
// flight. Callers retry after the running handle completes; playback is
// never queued.
var ErrBusy = errors.New("player: transmission already in flight")

// SignalError wraps an emitter failure that aborted playback.
type SignalError struct {
	Err error
}

func (e *SignalError) Error() string { return fmt.Sprintf("signal unavailable: %v", e.Err) }

func (e *SignalError) Unwrap() error { return e.Err }

// Handle identifies and controls one in-flight transmission.
type Handle struct {
	// ID uniquely identifies this transmission.
	ID uuid.UUID

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Done is closed once playback has fully unwound and the emitter is off.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the playback outcome. Valid after Done is closed: nil on
// normal completion, context.Canceled after Cancel, or a *SignalError.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Cancel stops playback and blocks until the emitter has been forced off
// and the background goroutine has unwound. Safe to call more than once
// and after completion.
func (h *Handle) Cancel() {
	h.cancel()
	<-h.done
}

func (h *Handle) setErr(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

// Player schedules pulse playback.
type Player struct {
	sleeper Sleeper

	mu   sync.Mutex
	busy bool
}

// New creates a Player that sleeps on the wall clock.
func New() *Player {
	return &Player{sleeper: realSleeper{}}
}

// NewWithSleeper creates a Player with an injected sleeper. Used by tests
// to play sequences without real delays.
func NewWithSleeper(s Sleeper) *Player {
	return &Player{sleeper: s}
}

// Busy reports whether a transmission is currently in flight.
func (p *Player) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// Play starts pulse playback on a background goroutine and returns a
// cancellation handle. Returns ErrBusy if a transmission is already in
// flight. onDone, if non-nil, is invoked exactly once with the playback
// outcome after the emitter has been forced off.
func (p *Player) Play(ctx context.Context, pulses []morse.Pulse, em emitter.Emitter, onDone func(err error)) (*Handle, error) {
	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	p.busy = true
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		ID:     uuid.New(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go p.run(ctx, h, pulses, em, onDone)

	return h, nil
}

func (p *Player) run(ctx context.Context, h *Handle, pulses []morse.Pulse, em emitter.Emitter, onDone func(err error)) {
	defer h.cancel()

	err := p.playSequence(ctx, pulses, em)

	// Force the emitter off regardless of how playback ended.
	if offErr := em.Set(false); offErr != nil && err == nil {
		err = &SignalError{Err: offErr}
	}

	h.setErr(err)

	p.mu.Lock()
	p.busy = false
	p.mu.Unlock()

	close(h.done)

	if onDone != nil {
		onDone(err)
	}
}

// playSequence toggles the emitter through the pulses strictly in order.
func (p *Player) playSequence(ctx context.Context, pulses []morse.Pulse, em emitter.Emitter) error {
	for _, pulse := range pulses {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := em.Set(pulse.On); err != nil {
			return &SignalError{Err: err}
		}
		if err := p.sleeper.Sleep(ctx, pulse.Duration); err != nil {
			return err
		}
	}
	return nil
}
