package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string     `json:"event,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	UserID         string     `json:"user_id"`
	Code           CodeJSON   `json:"code"`
	Session        string     `json:"session"`
	Transmitting   bool       `json:"transmitting"`
	TransmissionID string     `json:"transmission_id,omitempty"`
	UptimeSeconds  int64      `json:"uptime_seconds"`
	StartTime      string     `json:"start_time"`
	Timestamp      string     `json:"timestamp"`
	MQTT           MQTTStatus `json:"mqtt"`
	Counts         CountsJSON `json:"event_counts"`
	Config         ConfigJSON `json:"config"`
}

// CodeJSON is the JSON representation of the code lifecycle state.
type CodeJSON struct {
	State          string `json:"state"`
	Value          string `json:"value,omitempty"`
	ExpiresAt      string `json:"expires_at,omitempty"`
	RemainingMs    int64  `json:"remaining_ms"`
	RemainingTries int    `json:"remaining_tries"`
	CooldownMs     int64  `json:"cooldown_ms"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Generated int `json:"generated"`
	Attempts  int `json:"attempts"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	CodeTTLMs     int64  `json:"code_ttl_ms"`
	CooldownMs    int64  `json:"cooldown_ms"`
	MaxAttempts   int    `json:"max_attempts"`
	MorseUnitMs   int64  `json:"morse_unit_ms"`
	IdleTimeoutMs int64  `json:"idle_timeout_ms"`
	WarningLeadMs int64  `json:"warning_lead_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	c := CodeJSON{
		State:          string(snap.Code.State),
		Value:          snap.Code.Code,
		RemainingMs:    snap.Code.Remaining.Milliseconds(),
		RemainingTries: snap.Code.RemainingAttempts,
		CooldownMs:     snap.Code.CooldownRemaining.Milliseconds(),
	}
	if !snap.Code.ExpiresAt.IsZero() {
		c.ExpiresAt = snap.Code.ExpiresAt.UTC().Format(time.RFC3339)
	}

	return StatusInner{
		UserID:         snap.UserID,
		Code:           c,
		Session:        string(snap.Session),
		Transmitting:   snap.Transmitting,
		TransmissionID: snap.TransmissionID,
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		MQTT:           MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Generated: snap.Counts.Generated,
			Attempts:  snap.Counts.Attempts,
			Completed: snap.Counts.Completed,
			Failed:    snap.Counts.Failed,
		},
		Config: ConfigJSON{
			CodeTTLMs:     snap.Config.CodeTTLMs,
			CooldownMs:    snap.Config.CooldownMs,
			MaxAttempts:   snap.Config.MaxAttempts,
			MorseUnitMs:   snap.Config.MorseUnitMs,
			IdleTimeoutMs: snap.Config.IdleTimeoutMs,
			WarningLeadMs: snap.Config.WarningLeadMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	// Never leak the code value onto the broker; it is display-only.
	inner.Code.Value = ""

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
