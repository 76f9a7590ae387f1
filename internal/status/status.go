// Package status provides a thread-safe status tracker for the lockbeam
// daemon. It is read by HTTP handlers and embedded into MQTT system event
// payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/lockbeam/internal/code"
	"github.com/sweeney/lockbeam/internal/session"
)

// Config contains daemon configuration for display.
type Config struct {
	CodeTTLMs     int64
	CooldownMs    int64
	MaxAttempts   int
	MorseUnitMs   int64
	IdleTimeoutMs int64
	WarningLeadMs int64
	HeartbeatMs   int64
	Broker        string
	HTTPAddr      string
}

// EventCounts tracks lifecycle activity since startup.
type EventCounts struct {
	Generated int
	Attempts  int
	Completed int
	Failed    int
}

// Snapshot is a point-in-time view of daemon state. It is a value type,
// safe to use after the lock is released.
type Snapshot struct {
	UserID         string
	Code           code.Snapshot
	Session        session.State
	Transmitting   bool
	TransmissionID string
	Counts         EventCounts
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(userID string, startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			UserID:    userID,
			StartTime: startTime,
			Config:    cfg,
			Code:      code.Snapshot{State: code.StateIdle},
			Session:   session.StateLoggedOut,
		},
	}
}

// SetCode updates the code lifecycle view.
func (t *Tracker) SetCode(snap code.Snapshot) {
	t.mu.Lock()
	t.snap.Code = snap
	t.mu.Unlock()
}

// SetSession updates the watchdog state.
func (t *Tracker) SetSession(state session.State) {
	t.mu.Lock()
	t.snap.Session = state
	t.mu.Unlock()
}

// SetTransmitting marks a transmission in flight (or cleared).
func (t *Tracker) SetTransmitting(active bool, id string) {
	t.mu.Lock()
	t.snap.Transmitting = active
	t.snap.TransmissionID = id
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// IncGenerated counts a successful code generation.
func (t *Tracker) IncGenerated() {
	t.mu.Lock()
	t.snap.Counts.Generated++
	t.mu.Unlock()
}

// IncAttempt counts an accepted transmission attempt.
func (t *Tracker) IncAttempt() {
	t.mu.Lock()
	t.snap.Counts.Attempts++
	t.mu.Unlock()
}

// IncCompleted counts a playback that ran to completion.
func (t *Tracker) IncCompleted() {
	t.mu.Lock()
	t.snap.Counts.Completed++
	t.mu.Unlock()
}

// IncFailed counts a playback aborted by cancel or emitter failure.
func (t *Tracker) IncFailed() {
	t.mu.Lock()
	t.snap.Counts.Failed++
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
