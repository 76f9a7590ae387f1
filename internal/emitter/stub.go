//go:build !linux

package emitter

import "errors"

// RealEmitter is not available on non-Linux platforms.
type RealEmitter struct{}

// NewRealEmitter returns an error on non-Linux platforms.
func NewRealEmitter(pin int) (*RealEmitter, error) {
	return nil, errors.New("emitter: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (e *RealEmitter) Set(on bool) error {
	return errors.New("emitter: not supported")
}

// Close is not implemented on non-Linux platforms.
func (e *RealEmitter) Close() error {
	return nil
}
