//go:build !linux

package gpio

import (
	"fmt"

	"github.com/sweeney/traffic-light/internal/logic"
)

// RealWriter is not available on non-Linux platforms.
type RealWriter struct{}

// NewRealWriter returns an error on non-Linux platforms.
func NewRealWriter(chipName string, pins Pins) (*RealWriter, error) {
	return nil, fmt.Errorf("%w: not supported on this platform (requires Linux)", ErrInit)
}

// Set is not implemented on non-Linux platforms.
func (w *RealWriter) Set(p logic.Phase, on bool) error {
	return fmt.Errorf("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (w *RealWriter) Close() error {
	return nil
}
