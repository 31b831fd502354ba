//go:build linux

package gpio

import (
	"fmt"

	"github.com/sweeney/traffic-light/internal/logic"
	"github.com/warthog618/go-gpiocdev"
)

// consumer is the label shown against requested lines in gpioinfo.
const consumer = "traffic-light"

// RealWriter drives lamps on actual hardware using the Linux GPIO character device.
type RealWriter struct {
	chip  *gpiocdev.Chip
	lines map[logic.Phase]*gpiocdev.Line
}

// NewRealWriter binds the named chip and requests the three lamp lines as
// outputs, initially low. On failure nothing is left requested.
func NewRealWriter(chipName string, pins Pins) (*RealWriter, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("%w: open gpio chip %q: %v", ErrInit, chipName, err)
	}

	w := &RealWriter{
		chip:  chip,
		lines: make(map[logic.Phase]*gpiocdev.Line, 3),
	}
	for _, p := range logic.Phases() {
		pin, _ := pins.For(p)
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("%w: request %s pin %d: %v", ErrInit, p, pin, err)
		}
		w.lines[p] = line
	}

	return w, nil
}

// Set drives the lamp for p.
func (w *RealWriter) Set(p logic.Phase, on bool) error {
	line, ok := w.lines[p]
	if !ok {
		return fmt.Errorf("gpio: no line for phase %q", string(p))
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("set %s pin: %w", p, err)
	}
	return nil
}

// Close releases GPIO resources.
// Drives every lamp low, then reconfigures the lines to input with pull-down
// (matching Pi boot defaults) before closing so nothing stays lit once the
// process is gone.
func (w *RealWriter) Close() error {
	var errs []error

	for p, line := range w.lines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive %s pin low: %w", p, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", p, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", p, err))
		}
		delete(w.lines, p)
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		w.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
