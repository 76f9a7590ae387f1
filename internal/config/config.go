// Package config handles configuration loading and validation for the
// lockbeam daemon.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the complete daemon configuration. Durations are stored
// in milliseconds to match the on-disk format.
type Config struct {
	// UserID identifies the session owner for persisted code records.
	UserID string `toml:"user_id"`

	// CodeLength is the number of characters in a generated code.
	CodeLength int `toml:"code_length"`

	// CodeTTLMs is how long a code stays valid after generation.
	CodeTTLMs int64 `toml:"code_ttl_ms"`

	// MaxAttempts is the transmission budget per code.
	MaxAttempts int `toml:"max_attempts"`

	// AttemptCooldownMs is the minimum spacing between attempts.
	// Zero or negative disables the cooldown.
	AttemptCooldownMs int64 `toml:"attempt_cooldown_ms"`

	// MorseUnitMs is the base pulse unit for optical timing.
	MorseUnitMs int64 `toml:"morse_unit_ms"`

	// IdleTimeoutMs is how long a session may sit idle before logout.
	IdleTimeoutMs int64 `toml:"idle_timeout_ms"`

	// WarningLeadMs is how far before logout the warning fires.
	WarningLeadMs int64 `toml:"warning_lead_ms"`

	// HeartbeatMs is the MQTT heartbeat interval. Zero disables it.
	HeartbeatMs int64 `toml:"heartbeat_ms"`

	// Broker is the MQTT broker URL.
	Broker string `toml:"broker"`

	// HTTPAddr is the listen address for the status server.
	HTTPAddr string `toml:"http_addr"`

	// StorePath is the SQLite database path for persisted code state.
	StorePath string `toml:"store_path"`

	// GPIOPin is the BCM pin number driving the emitter.
	GPIOPin int `toml:"gpio_pin"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		UserID:            "default",
		CodeLength:        6,
		CodeTTLMs:         120000,
		MaxAttempts:       3,
		AttemptCooldownMs: 30000,
		MorseUnitMs:       70,
		IdleTimeoutMs:     300000,
		WarningLeadMs:     10000,
		HeartbeatMs:       900000,
		Broker:            "tcp://localhost:1883",
		HTTPAddr:          ":8090",
		StorePath:         "/var/lib/lockbeam/state.db",
		GPIOPin:           17,
	}
}

// Load reads a TOML config file, layering it over the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c Config) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("config: user_id must not be empty")
	}
	if c.CodeLength < 1 {
		return fmt.Errorf("config: code_length must be at least 1, got %d", c.CodeLength)
	}
	if c.CodeTTLMs < 1 {
		return fmt.Errorf("config: code_ttl_ms must be positive, got %d", c.CodeTTLMs)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("config: max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.MorseUnitMs < 1 {
		return fmt.Errorf("config: morse_unit_ms must be positive, got %d", c.MorseUnitMs)
	}
	if c.IdleTimeoutMs < 1 {
		return fmt.Errorf("config: idle_timeout_ms must be positive, got %d", c.IdleTimeoutMs)
	}
	if c.WarningLeadMs < 0 || c.WarningLeadMs >= c.IdleTimeoutMs {
		return fmt.Errorf("config: warning_lead_ms must be in [0, idle_timeout_ms), got %d", c.WarningLeadMs)
	}
	if c.StorePath == "" {
		return fmt.Errorf("config: store_path must not be empty")
	}
	return nil
}

// CodeTTL returns the code lifetime as a duration.
func (c Config) CodeTTL() time.Duration { return time.Duration(c.CodeTTLMs) * time.Millisecond }

// AttemptCooldown returns the attempt spacing as a duration.
func (c Config) AttemptCooldown() time.Duration {
	return time.Duration(c.AttemptCooldownMs) * time.Millisecond
}

// MorseUnit returns the pulse unit as a duration.
func (c Config) MorseUnit() time.Duration { return time.Duration(c.MorseUnitMs) * time.Millisecond }

// IdleTimeout returns the session idle limit as a duration.
func (c Config) IdleTimeout() time.Duration { return time.Duration(c.IdleTimeoutMs) * time.Millisecond }

// WarningLead returns the warning lead as a duration.
func (c Config) WarningLead() time.Duration { return time.Duration(c.WarningLeadMs) * time.Millisecond }

// Heartbeat returns the heartbeat interval as a duration.
func (c Config) Heartbeat() time.Duration { return time.Duration(c.HeartbeatMs) * time.Millisecond }
