// Package engine wires the code lifecycle, pulse player, emitter, and
// telemetry together behind the operations the host (HTTP API or UI)
// invokes. It owns the single-transmission policy: a transmit while
// playback is in flight is rejected and never consumes an attempt.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/lockbeam/internal/code"
	"github.com/sweeney/lockbeam/internal/emitter"
	"github.com/sweeney/lockbeam/internal/player"
	"github.com/sweeney/lockbeam/internal/session"
	"github.com/sweeney/lockbeam/internal/status"
	"github.com/sweeney/lockbeam/internal/telemetry"
)

// ErrBusy is returned by Transmit while a previous transmission is still
// playing. The attempt budget is not touched.
var ErrBusy = player.ErrBusy

// Engine coordinates one user session's code and transmission state.
type Engine struct {
	lifecycle *code.Lifecycle
	player    *player.Player
	emitter   emitter.Emitter
	publisher telemetry.Publisher
	tracker   *status.Tracker
	watchdog  *session.Watchdog
	userID    string
	now       func() time.Time

	mu      sync.Mutex
	current *player.Handle
}

// New creates an Engine. The watchdog may be nil (headless tests).
func New(
	lifecycle *code.Lifecycle,
	pl *player.Player,
	em emitter.Emitter,
	pub telemetry.Publisher,
	tracker *status.Tracker,
	watchdog *session.Watchdog,
	userID string,
	now func() time.Time,
) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		lifecycle: lifecycle,
		player:    pl,
		emitter:   em,
		publisher: pub,
		tracker:   tracker,
		watchdog:  watchdog,
		userID:    userID,
		now:       now,
	}
}

// Rehydrate restores persisted code state on cold start. Returns true if
// an active code survived the restart.
func (e *Engine) Rehydrate(ctx context.Context) bool {
	restored := e.lifecycle.Rehydrate(ctx)
	e.tracker.SetCode(e.lifecycle.Snapshot())
	if restored {
		log.Printf("engine: restored active code for %s", e.userID)
	}
	return restored
}

// Generate mints a fresh code with a full attempt budget.
func (e *Engine) Generate(ctx context.Context) (code.Code, error) {
	c, err := e.lifecycle.Generate(ctx)
	e.tracker.SetCode(e.lifecycle.Snapshot())
	if err != nil {
		return code.Code{}, err
	}

	e.tracker.IncGenerated()
	e.publishEvent(telemetry.EventCodeGenerated, "", "")
	return c, nil
}

// Transmit consumes one attempt and starts pulse playback in the
// background. The returned handle lets the caller cancel or await the
// transmission.
func (e *Engine) Transmit(ctx context.Context) (*player.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Busy is checked before the lifecycle so a rejected call never
	// burns an attempt.
	if e.player.Busy() {
		return nil, ErrBusy
	}

	pulses, err := e.lifecycle.AttemptTransmit(ctx)
	e.tracker.SetCode(e.lifecycle.Snapshot())
	if err != nil {
		switch {
		case errors.Is(err, code.ErrExhausted):
			e.publishEvent(telemetry.EventCodeExhausted, "", "")
		case errors.Is(err, code.ErrExpired):
			e.publishEvent(telemetry.EventCodeExpired, "", "")
		}
		return nil, err
	}

	// Playback must outlive the caller (an HTTP request context dies the
	// moment the handler returns); the handle is the only cancel path
	// once the attempt is spent.
	h, err := e.player.Play(context.WithoutCancel(ctx), pulses, e.emitter, e.playbackDone)
	if err != nil {
		// Lost a race with another caller; the attempt is already spent.
		return nil, err
	}

	e.current = h
	e.tracker.IncAttempt()
	e.tracker.SetTransmitting(true, h.ID.String())
	e.publishEvent(telemetry.EventTransmitStarted, h.ID.String(), "")
	return h, nil
}

// playbackDone runs on the player goroutine once the emitter is off.
func (e *Engine) playbackDone(err error) {
	e.mu.Lock()
	var txID string
	if e.current != nil {
		txID = e.current.ID.String()
		e.current = nil
	}
	e.mu.Unlock()

	e.tracker.SetTransmitting(false, "")
	if err != nil {
		e.tracker.IncFailed()
		e.publishEvent(telemetry.EventTransmitFailed, txID, err.Error())
		return
	}
	e.tracker.IncCompleted()
	e.publishEvent(telemetry.EventTransmitDone, txID, "")
}

// CancelTransmission stops an in-flight transmission, forcing the emitter
// off before returning. Reports whether anything was cancelled.
func (e *Engine) CancelTransmission() bool {
	e.mu.Lock()
	h := e.current
	e.mu.Unlock()

	if h == nil {
		return false
	}
	h.Cancel()
	return true
}

// Activity forwards a user interaction to the watchdog.
func (e *Engine) Activity() {
	if e.watchdog != nil {
		e.watchdog.OnActivity()
		e.tracker.SetSession(e.watchdog.State())
	}
}

// Background signals that the controlling app left the foreground. The
// watchdog logs the session out immediately, with no warning grace.
func (e *Engine) Background() {
	if e.watchdog != nil {
		e.watchdog.OnBackground()
		e.tracker.SetSession(e.watchdog.State())
	}
}

// EndSession cancels any in-flight transmission and marks the persisted
// record not running. Called when the host terminates the session.
func (e *Engine) EndSession(ctx context.Context) {
	e.CancelTransmission()
	e.lifecycle.Discard(ctx)
	e.tracker.SetCode(e.lifecycle.Snapshot())
}

// Snapshot returns the lifecycle view, evaluating expiry lazily.
func (e *Engine) Snapshot() code.Snapshot {
	return e.lifecycle.Snapshot()
}

func (e *Engine) publishEvent(t telemetry.EventType, txID, detail string) {
	snap := e.lifecycle.Snapshot()
	event := telemetry.Event{
		ID:             uuid.New(),
		Timestamp:      e.now(),
		Type:           t,
		UserID:         e.userID,
		TransmissionID: txID,
		RemainingTries: snap.RemainingAttempts,
		Detail:         detail,
	}
	if err := e.publisher.Publish(event); err != nil {
		log.Printf("engine: publish %s: %v", t, err)
	}
}
