// Package gpio provides GPIO output control for the three signal lamps.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"

	"github.com/sweeney/traffic-light/internal/logic"
)

// ErrInit marks failures to bind the chip or configure an output line.
var ErrInit = errors.New("gpio: initialization failed")

// Writer drives the lamp outputs.
type Writer interface {
	// Set drives the output for the given phase high (on) or low.
	Set(p logic.Phase, on bool) error

	// Close drives all outputs low and releases GPIO resources.
	Close() error
}

// Pins maps each lamp to a line offset on the chip (BCM numbering).
type Pins struct {
	Red    int
	Yellow int
	Green  int
}

// For returns the line offset wired to p.
func (p Pins) For(phase logic.Phase) (int, error) {
	switch phase {
	case logic.Red:
		return p.Red, nil
	case logic.Yellow:
		return p.Yellow, nil
	case logic.Green:
		return p.Green, nil
	}
	return 0, fmt.Errorf("gpio: no pin for phase %q", string(phase))
}

// Defaults for a Raspberry Pi 3B+ wired like the reference build.
const (
	DefaultChip      = "gpiochip0"
	DefaultPinRed    = 14
	DefaultPinYellow = 15
	DefaultPinGreen  = 18
)

// DefaultPins returns the default lamp wiring.
func DefaultPins() Pins {
	return Pins{Red: DefaultPinRed, Yellow: DefaultPinYellow, Green: DefaultPinGreen}
}

// AllOff drives every lamp low, returning the first error encountered.
// All three writes are attempted regardless of earlier failures.
func AllOff(w Writer) error {
	var first error
	for _, p := range logic.Phases() {
		if err := w.Set(p, false); err != nil && first == nil {
			first = err
		}
	}
	return first
}
