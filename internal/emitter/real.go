//go:build linux

package emitter

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealEmitter drives an actual GPIO output line using the Linux GPIO
// character device.
type RealEmitter struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealEmitter claims the given BCM pin as an output, initially off.
func NewRealEmitter(pin int) (*RealEmitter, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}

	return &RealEmitter{chip: chip, line: line}, nil
}

// Set switches the output line.
func (e *RealEmitter) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := e.line.SetValue(v); err != nil {
		return fmt.Errorf("set output: %w", err)
	}
	return nil
}

// Close drives the line low, reconfigures it to input with pull-down
// (matching Pi boot defaults) and releases GPIO resources. Driving low
// first guarantees the light is not left on across a daemon restart.
func (e *RealEmitter) Close() error {
	var errs []error

	if e.line != nil {
		if err := e.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear output: %w", err))
		}
		if err := e.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin: %w", err))
		}
		if err := e.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin: %w", err))
		}
	}
	if e.chip != nil {
		if err := e.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
