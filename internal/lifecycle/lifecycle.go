// Package lifecycle loads and unloads the signal: it binds the outputs,
// builds the scheduler and registers the control file, rolling back
// whatever was set up if a later step fails.
package lifecycle

import (
	"errors"
	"fmt"
	"log"

	"github.com/sweeney/traffic-light/internal/control"
	"github.com/sweeney/traffic-light/internal/gpio"
	"github.com/sweeney/traffic-light/internal/logic"
	"github.com/sweeney/traffic-light/internal/scheduler"
)

// Config describes what to bind at load time.
type Config struct {
	Chip        string
	Pins        gpio.Pins
	ControlPath string // empty disables the control file

	// OpenWriter binds the outputs. Defaults to gpio.NewRealWriter.
	OpenWriter func(chip string, pins gpio.Pins) (gpio.Writer, error)

	// SchedulerOptions are passed through to scheduler.New.
	SchedulerOptions []scheduler.Option
}

// Module is a loaded signal.
type Module struct {
	writer    gpio.Writer
	scheduler *scheduler.Scheduler
	file      *control.File
}

func openReal(chip string, pins gpio.Pins) (gpio.Writer, error) {
	w, err := gpio.NewRealWriter(chip, pins)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Load binds the outputs, forces them off and registers the control
// surface. The returned Module is disarmed. On error nothing is left
// bound or registered.
func Load(cfg Config) (*Module, error) {
	open := cfg.OpenWriter
	if open == nil {
		open = openReal
	}

	w, err := open(cfg.Chip, cfg.Pins)
	if err != nil {
		return nil, fmt.Errorf("bind outputs: %w", err)
	}
	if err := gpio.AllOff(w); err != nil {
		w.Close()
		return nil, fmt.Errorf("%w: drive outputs low: %v", gpio.ErrInit, err)
	}

	// The control file follows power changes made through any surface.
	var file *control.File
	opts := make([]scheduler.Option, 0, len(cfg.SchedulerOptions)+1)
	opts = append(opts, cfg.SchedulerOptions...)
	opts = append(opts, scheduler.WithListener(func(e logic.Event) {
		if file != nil && e.PowerChanged() {
			file.Changed()
		}
	}))

	m := &Module{
		writer:    w,
		scheduler: scheduler.New(w, opts...),
	}

	if cfg.ControlPath != "" {
		file = control.NewFile(cfg.ControlPath, m.scheduler)
		if err := file.Register(); err != nil {
			file = nil
			m.scheduler.Close()
			w.Close()
			return nil, fmt.Errorf("register control surface: %w", err)
		}
		m.file = file
	}

	log.Printf("lifecycle: loaded chip=%s red=%d yellow=%d green=%d", cfg.Chip, cfg.Pins.Red, cfg.Pins.Yellow, cfg.Pins.Green)
	return m, nil
}

// Scheduler returns the module's scheduler.
func (m *Module) Scheduler() *scheduler.Scheduler {
	return m.scheduler
}

// Control returns the control file, or nil if it is disabled.
func (m *Module) Control() *control.File {
	return m.file
}

// Unload unregisters the control surface, cancels any pending timer,
// forces every lamp off and releases the outputs.
func (m *Module) Unload() error {
	var errs []error
	if m.file != nil {
		if err := m.file.Unregister(); err != nil {
			errs = append(errs, fmt.Errorf("unregister control surface: %w", err))
		}
	}
	if err := m.scheduler.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close scheduler: %w", err))
	}
	if err := m.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("release outputs: %w", err))
	}

	log.Printf("lifecycle: unloaded")
	return errors.Join(errs...)
}
