// Package session implements the idle-timeout watchdog guarding an
// authenticated session. It is independent of the code lifecycle: its only
// inputs are activity signals from the host, its only outputs are the
// warning and logout callbacks.
package session

import (
	"sync"
	"time"
)

// Default timing: 5 minutes of idle ends the session, with a warning
// surfaced 10 seconds before the end.
const (
	DefaultIdleTimeout = 5 * time.Minute
	DefaultWarningLead = 10 * time.Second
)

// State of the watchdog.
type State string

const (
	StateActive        State = "ACTIVE"
	StateWarningIssued State = "WARNING_ISSUED"
	StateLoggedOut     State = "LOGGED_OUT"
)

// Config holds the watchdog timing parameters.
type Config struct {
	IdleTimeout time.Duration
	WarningLead time.Duration
}

// Callbacks are the host hooks. OnLogout is invoked exactly once per
// forced logout; OnWarning once per warning issued.
type Callbacks struct {
	OnWarning func()
	OnLogout  func()
}

// Watchdog tracks user activity and forces logout after inactivity, with
// an intermediate warning stage. State is transient: a process restart
// always starts a fresh session.
type Watchdog struct {
	cfg   Config
	sched Scheduler
	cb    Callbacks

	mu          sync.Mutex
	state       State
	warnTimer   Timer
	logoutTimer Timer
	started     bool
}

// New creates a Watchdog using wall-clock timers.
func New(cfg Config, cb Callbacks) *Watchdog {
	return NewWithScheduler(cfg, cb, realScheduler{})
}

// NewWithScheduler creates a Watchdog with an injected scheduler.
func NewWithScheduler(cfg Config, cb Callbacks, sched Scheduler) *Watchdog {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.WarningLead <= 0 || cfg.WarningLead >= cfg.IdleTimeout {
		cfg.WarningLead = DefaultWarningLead
	}
	return &Watchdog{cfg: cfg, sched: sched, cb: cb, state: StateLoggedOut}
}

// Start begins a session: state Active, warning scheduled at
// IdleTimeout - WarningLead.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started = true
	w.state = StateActive
	w.rescheduleLocked()
}

// State returns the current watchdog state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// OnActivity resets the idle timer. During WarningIssued it also returns
// the watchdog to Active and cancels the pending forced logout. Ignored
// once logged out.
func (w *Watchdog) OnActivity() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started || w.state == StateLoggedOut {
		return
	}
	w.state = StateActive
	w.rescheduleLocked()
}

// OnBackground forces logout immediately. Backgrounding the host grants
// no grace period; this is a distinct, faster path than the idle timeout.
func (w *Watchdog) OnBackground() {
	w.forceLogout()
}

// Stop ends the session without invoking the logout callback. Used when
// the host terminates the session itself (explicit sign-out).
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopTimersLocked()
	w.state = StateLoggedOut
}

// rescheduleLocked cancels pending timers and schedules the next warning.
func (w *Watchdog) rescheduleLocked() {
	w.stopTimersLocked()
	lead := w.cfg.IdleTimeout - w.cfg.WarningLead
	w.warnTimer = w.sched.AfterFunc(lead, w.warningFired)
}

func (w *Watchdog) stopTimersLocked() {
	if w.warnTimer != nil {
		w.warnTimer.Stop()
		w.warnTimer = nil
	}
	if w.logoutTimer != nil {
		w.logoutTimer.Stop()
		w.logoutTimer = nil
	}
}

// warningFired transitions Active -> WarningIssued and schedules the
// forced logout WarningLead later.
func (w *Watchdog) warningFired() {
	w.mu.Lock()
	if w.state != StateActive {
		w.mu.Unlock()
		return
	}
	w.state = StateWarningIssued
	w.logoutTimer = w.sched.AfterFunc(w.cfg.WarningLead, w.logoutFired)
	onWarning := w.cb.OnWarning
	w.mu.Unlock()

	if onWarning != nil {
		onWarning()
	}
}

func (w *Watchdog) logoutFired() {
	w.forceLogout()
}

// forceLogout transitions to LoggedOut and invokes the logout callback.
// Idempotent: the callback fires at most once per session.
func (w *Watchdog) forceLogout() {
	w.mu.Lock()
	if !w.started || w.state == StateLoggedOut {
		w.mu.Unlock()
		return
	}
	w.stopTimersLocked()
	w.state = StateLoggedOut
	onLogout := w.cb.OnLogout
	w.mu.Unlock()

	if onLogout != nil {
		onLogout()
	}
}
