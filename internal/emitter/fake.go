package emitter

import (
	"errors"
	"sync"
)

// FakeEmitter is a test double that records every Set call.
// It is safe for concurrent use: playback runs on a background goroutine
// while tests inspect recorded state.
type FakeEmitter struct {
	mu sync.Mutex

	// states records the argument of every Set call, in order.
	states []bool

	// Closed tracks if Close was called.
	Closed bool

	// SetError, if set, will be returned by every Set call.
	SetError error

	// FailAfter, if > 0, makes Set fail once that many calls have been
	// recorded. Used to script mid-sequence emitter failure.
	FailAfter int

	calls int
}

// NewFakeEmitter creates a FakeEmitter.
func NewFakeEmitter() *FakeEmitter {
	return &FakeEmitter{}
}

// Set records the requested state.
func (f *FakeEmitter) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.SetError != nil {
		return f.SetError
	}
	if f.FailAfter > 0 && f.calls > f.FailAfter {
		return ErrSignalLost
	}

	f.states = append(f.states, on)
	return nil
}

// Close marks the emitter as closed.
func (f *FakeEmitter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// States returns a copy of all recorded Set arguments.
func (f *FakeEmitter) States() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.states))
	copy(out, f.states)
	return out
}

// Last returns the argument of the most recent successful Set call.
// The second return is false if Set was never called.
func (f *FakeEmitter) Last() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return false, false
	}
	return f.states[len(f.states)-1], true
}

// Reset clears recorded state.
func (f *FakeEmitter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = nil
	f.calls = 0
	f.Closed = false
	f.SetError = nil
	f.FailAfter = 0
}

// ErrSignalLost is returned by Set once FailAfter is exceeded.
var ErrSignalLost = errors.New("emitter: signal lost")
