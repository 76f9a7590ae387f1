package code

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/sweeney/lockbeam/internal/morse"
	"github.com/sweeney/lockbeam/internal/store"
)

// Config holds the tunable lifecycle parameters. Values are used as
// given; a non-positive Cooldown disables the cooldown window.
type Config struct {
	Length      int
	TTL         time.Duration
	MaxAttempts int
	Cooldown    time.Duration
	Unit        time.Duration
}

// DefaultConfig returns the shipping defaults.
func DefaultConfig() Config {
	return Config{
		Length:      6,
		TTL:         120 * time.Second,
		MaxAttempts: 3,
		Cooldown:    30 * time.Second,
		Unit:        morse.DefaultUnit,
	}
}

// Lifecycle owns the active code and its attempt budget for one user's
// session. All mutations are persisted through the store; the persisted
// record is the sole source of truth consulted on cold start. One
// Lifecycle instance exists per session; there is no ambient shared state.
type Lifecycle struct {
	store  store.Store
	userID string
	cfg    Config
	now    func() time.Time

	mu      sync.Mutex
	active  *Code
	budget  Budget
	stopped bool // persisted is_timer_running already cleared
}

// New creates a Lifecycle for the given user identity.
func New(st store.Store, userID string, cfg Config, now func() time.Time) *Lifecycle {
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{store: st, userID: userID, cfg: cfg, now: now}
}

// Generate mints a fresh code with a full attempt budget and persists the
// timer record. Fails with ErrAlreadyActive while a non-expired code with
// remaining attempts exists; the caller must let it expire or exhaust
// before a new one can be issued.
func (l *Lifecycle) Generate(ctx context.Context) (Code, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.active != nil && !l.active.Expired(now) && l.budget.Remaining > 0 {
		return Code{}, ErrAlreadyActive
	}

	value, err := Generate(l.cfg.Length)
	if err != nil {
		return Code{}, fmt.Errorf("generate code: %w", err)
	}

	prevActive, prevBudget, prevStopped := l.active, l.budget, l.stopped
	c := Code{Value: value, CreatedAt: now, ExpiresAt: now.Add(l.cfg.TTL)}
	l.active = &c
	l.budget = Budget{Remaining: l.cfg.MaxAttempts}
	l.stopped = false

	if err := l.persistRecord(ctx, true); err != nil {
		l.active, l.budget, l.stopped = prevActive, prevBudget, prevStopped
		return Code{}, err
	}

	return c, nil
}

// AttemptTransmit consumes one attempt and returns the pulse sequence for
// the active code. Expiry is checked lazily here; there is no background
// expiry timer. On the attempt that empties the budget the persisted
// record is marked not running.
func (l *Lifecycle) AttemptTransmit(ctx context.Context) ([]morse.Pulse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.active == nil {
		return nil, ErrExpired
	}
	if l.active.Expired(now) {
		l.clearRunning(ctx)
		return nil, ErrExpired
	}
	if l.budget.Remaining == 0 {
		return nil, ErrExhausted
	}
	if remaining := l.budget.CooldownRemaining(now, l.cfg.Cooldown); remaining > 0 {
		return nil, &CooldownError{Remaining: remaining}
	}

	prev := l.budget
	l.budget.Remaining--
	l.budget.LastAttemptAt = now

	running := l.budget.Remaining > 0
	if err := l.persistRecord(ctx, running); err != nil {
		l.budget = prev
		return nil, err
	}
	l.stopped = !running

	return morse.Encode(l.active.Value, l.cfg.Unit), nil
}

// Rehydrate restores the Active state from the persisted record. Returns
// true if a running, unexpired record owned by this user was found. Read
// failures degrade to "no active code": losing an in-flight code is
// recoverable by generating a new one.
func (l *Lifecycle) Rehydrate(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	owner, ok := l.read(ctx, store.FieldOwningUserID)
	if !ok {
		return false
	}
	if owner != l.userID {
		// Stale state from a different identity on this device.
		// Invalidate the record under the owner that wrote it.
		key := store.Key{UserID: owner, Field: store.FieldIsTimerRunning}
		if err := l.store.Set(ctx, key, "false"); err != nil {
			log.Printf("code: clear stale record for %s: %v", owner, err)
		}
		return false
	}

	running, ok := l.read(ctx, store.FieldIsTimerRunning)
	if !ok || running != "true" {
		return false
	}

	endStr, ok := l.read(ctx, store.FieldEndTime)
	if !ok {
		return false
	}
	endMs, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil {
		log.Printf("code: bad persisted end_time %q: %v", endStr, err)
		return false
	}
	endTime := time.UnixMilli(endMs)

	now := l.now()
	if !now.Before(endTime) {
		l.clearRunning(ctx)
		return false
	}

	value, ok := l.read(ctx, store.FieldCurrentCode)
	if !ok || value == "" {
		return false
	}

	triesStr, ok := l.read(ctx, store.FieldRemainingTries)
	if !ok {
		return false
	}
	tries, err := strconv.Atoi(triesStr)
	if err != nil {
		log.Printf("code: bad persisted remaining_tries %q: %v", triesStr, err)
		return false
	}
	if tries <= 0 {
		l.clearRunning(ctx)
		return false
	}

	l.active = &Code{
		Value:     value,
		CreatedAt: endTime.Add(-l.cfg.TTL),
		ExpiresAt: endTime,
	}
	l.budget = Budget{Remaining: tries}
	l.stopped = false
	return true
}

// Discard drops the active code and marks the record not running. Used
// when the host ends the session.
func (l *Lifecycle) Discard(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clearRunning(ctx)
	l.active = nil
	l.budget = Budget{}
}

// Snapshot returns the current lifecycle view, evaluating expiry lazily.
func (l *Lifecycle) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.active == nil {
		return Snapshot{State: StateIdle}
	}

	s := Snapshot{
		Code:              l.active.Value,
		ExpiresAt:         l.active.ExpiresAt,
		Remaining:         l.active.Remaining(now),
		RemainingAttempts: l.budget.Remaining,
		CooldownRemaining: l.budget.CooldownRemaining(now, l.cfg.Cooldown),
	}
	switch {
	case l.active.Expired(now):
		s.State = StateExpired
	case l.budget.Remaining == 0:
		s.State = StateExhausted
	default:
		s.State = StateActive
	}
	return s
}

func (l *Lifecycle) read(ctx context.Context, field string) (string, bool) {
	v, ok, err := l.store.Get(ctx, store.Key{UserID: l.userID, Field: field})
	if err != nil {
		log.Printf("code: read %s: %v", field, err)
		return "", false
	}
	return v, ok
}

// persistRecord writes the full timer record atomically.
func (l *Lifecycle) persistRecord(ctx context.Context, running bool) error {
	fields := map[string]string{
		store.FieldEndTime:        strconv.FormatInt(l.active.ExpiresAt.UnixMilli(), 10),
		store.FieldCurrentCode:    l.active.Value,
		store.FieldIsTimerRunning: strconv.FormatBool(running),
		store.FieldRemainingTries: strconv.Itoa(l.budget.Remaining),
		store.FieldOwningUserID:   l.userID,
	}
	if err := l.store.SetMany(ctx, l.userID, fields); err != nil {
		return fmt.Errorf("persist timer record: %w", err)
	}
	return nil
}

// clearRunning marks the persisted record not running, best effort.
func (l *Lifecycle) clearRunning(ctx context.Context) {
	if l.stopped {
		return
	}
	key := store.Key{UserID: l.userID, Field: store.FieldIsTimerRunning}
	if err := l.store.Set(ctx, key, "false"); err != nil {
		log.Printf("code: clear is_timer_running: %v", err)
		return
	}
	l.stopped = true
}
