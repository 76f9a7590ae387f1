// Package telemetry publishes code lifecycle and session events over MQTT
// with abstraction for testing. The lock backend and monitoring tools
// subscribe to these topics; the daemon never depends on them answering.
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topic is the MQTT topic for code lifecycle events.
const Topic = "lock/optic/events"

// TopicSystem is the MQTT topic for daemon lifecycle events.
const TopicSystem = "lock/optic/system"

// EventType identifies a code lifecycle or session event.
type EventType string

const (
	EventCodeGenerated   EventType = "CODE_GENERATED"
	EventCodeExpired     EventType = "CODE_EXPIRED"
	EventCodeExhausted   EventType = "CODE_EXHAUSTED"
	EventTransmitStarted EventType = "TRANSMIT_STARTED"
	EventTransmitDone    EventType = "TRANSMIT_DONE"
	EventTransmitFailed  EventType = "TRANSMIT_FAILED"
	EventSessionWarning  EventType = "SESSION_WARNING"
	EventSessionLogout   EventType = "SESSION_LOGOUT"
)

// Event is one entry of the device-side audit trail. Code values are
// never carried on the wire; only their lifecycle is.
type Event struct {
	ID             uuid.UUID
	Timestamp      time.Time
	Type           EventType
	UserID         string
	TransmissionID string // set on TRANSMIT_* events
	RemainingTries int
	Detail         string // e.g. failure reason
}

// SystemEvent represents a daemon lifecycle event (startup, shutdown,
// heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g. "SIGTERM", "IDLE_LOGOUT" (shutdown only)
	RawPayload []byte // pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // whether the broker should retain the message
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a lifecycle event to the broker.
	// Returns error if publishing fails (must not crash the process).
	Publish(event Event) error

	// PublishSystem sends a daemon lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Payload is the wire envelope for lifecycle events.
type Payload struct {
	Lock LockPayload `json:"lock"`
}

// LockPayload contains the event details.
type LockPayload struct {
	ID             string `json:"id"`
	Timestamp      string `json:"timestamp"`
	Event          string `json:"event"`
	UserID         string `json:"user_id"`
	TransmissionID string `json:"transmission_id,omitempty"`
	RemainingTries int    `json:"remaining_tries"`
	Detail         string `json:"detail,omitempty"`
}

// FormatPayload creates the JSON payload for a lifecycle event.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		Lock: LockPayload{
			ID:             event.ID.String(),
			Timestamp:      event.Timestamp.UTC().Format(time.RFC3339),
			Event:          string(event.Type),
			UserID:         event.UserID,
			TransmissionID: event.TransmissionID,
			RemainingTries: event.RemainingTries,
			Detail:         event.Detail,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the wire envelope for simple system events that carry
// no status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full
// status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
