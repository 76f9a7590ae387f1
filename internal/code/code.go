// Package code implements the one-time code lifecycle: generation, the
// time-to-live window, and the per-code attempt budget with its cooldown.
// Pure state transitions take time through an injected clock; durability
// goes through the store collaborator.
package code

import (
	"errors"
	"fmt"
	"time"
)

// Alphabet is the closed charset for code values.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Lifecycle errors. Exhausted and cooldown are expected user-facing
// conditions, not failures; callers branch on them.
var (
	// ErrAlreadyActive is returned by Generate while a non-expired code
	// with remaining attempts exists.
	ErrAlreadyActive = errors.New("code: active code with remaining attempts exists")

	// ErrExhausted is returned once the attempt budget reaches zero.
	ErrExhausted = errors.New("code: attempt budget exhausted")

	// ErrExpired is returned when no code is active or the active code's
	// TTL has elapsed.
	ErrExpired = errors.New("code: code expired")
)

// CooldownError reports an attempt made before the cooldown window closed.
type CooldownError struct {
	// Remaining is how much longer the caller must wait.
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("code: in cooldown for another %v", e.Remaining)
}

// Code is a one-time value transmitted optically to the lock.
type Code struct {
	Value     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the TTL has elapsed at the given instant.
func (c Code) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Remaining returns the time left before expiry, never negative.
func (c Code) Remaining(now time.Time) time.Duration {
	if c.Expired(now) {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// Budget tracks the attempt allowance of one code. Remaining only ever
// decreases by one per successful attempt and resets only when a new code
// is generated. Cooldown is measured from the last attempt, not from code
// creation, and never carries over between codes.
type Budget struct {
	Remaining     int
	LastAttemptAt time.Time // zero value means no attempt yet
}

// CooldownRemaining returns how long until the next attempt is permitted.
// Zero means an attempt is allowed now.
func (b Budget) CooldownRemaining(now time.Time, cooldown time.Duration) time.Duration {
	if cooldown <= 0 || b.LastAttemptAt.IsZero() {
		return 0
	}
	end := b.LastAttemptAt.Add(cooldown)
	if !now.Before(end) {
		return 0
	}
	return end.Sub(now)
}

// State labels the lifecycle position of the current code.
type State string

const (
	StateIdle      State = "IDLE"
	StateActive    State = "ACTIVE"
	StateExhausted State = "EXHAUSTED"
	StateExpired   State = "EXPIRED"
)

// Snapshot is a point-in-time view of the lifecycle, safe to use after
// the lifecycle lock is released.
type Snapshot struct {
	State             State
	Code              string
	ExpiresAt         time.Time
	Remaining         time.Duration
	RemainingAttempts int
	CooldownRemaining time.Duration
}
