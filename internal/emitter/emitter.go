// Package emitter provides binary signal output with hardware abstraction.
// The real implementation drives a GPIO line (torch/LED) through the Linux
// GPIO character device. The fake implementation allows testing without
// hardware.
package emitter

// DefaultPin is the BCM pin number driving the transmission LED.
const DefaultPin = 17

// Emitter switches a binary light output on and off.
type Emitter interface {
	// Set switches the signal. Safe to call rapidly and repeatedly;
	// setting an already-applied state is a no-op at the hardware level.
	Set(on bool) error

	// Close forces the signal off and releases hardware resources.
	Close() error
}
