//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/intercom-node/internal/logic"
)

// RealBoard is not available on non-Linux platforms.
type RealBoard struct{}

// NewRealBoard returns an error on non-Linux platforms.
func NewRealBoard(opts Options, h Handlers) (*RealBoard, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Feedback is not implemented on non-Linux platforms.
func (b *RealBoard) Feedback() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// SetOutput is not implemented on non-Linux platforms.
func (b *RealBoard) SetOutput(pin logic.DrivePin, on bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *RealBoard) Close() error {
	return nil
}
