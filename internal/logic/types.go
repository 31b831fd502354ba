// Package logic contains the pure traffic light state machine data.
// This package has NO external dependencies (no GPIO, MQTT, OS, or timers).
package logic

import "time"

// Phase is one of the three lamps of the signal.
type Phase string

const (
	Red    Phase = "RED"
	Yellow Phase = "YELLOW"
	Green  Phase = "GREEN"
)

// PhaseOff is reported in place of a Phase while the cycle is disarmed.
// It never appears in the transition table.
const PhaseOff Phase = "OFF"

// Transition is a single row of the transition table.
type Transition struct {
	// Next is the phase entered when this phase's timer expires.
	Next Phase
	// Duration is how long this row's phase stays lit once entered.
	Duration time.Duration
}

// Event records one observable change of the signal.
type Event struct {
	Timestamp time.Time
	From      Phase // PhaseOff when arming
	To        Phase // PhaseOff when disarming
	Dwell     time.Duration
	Powered   bool
}

// PowerChanged reports whether e armed or disarmed the cycle.
func (e Event) PowerChanged() bool {
	return (e.From == PhaseOff) != (e.To == PhaseOff)
}

// TransitionCounts tracks how many times each phase has been entered.
type TransitionCounts struct {
	Red     int
	Yellow  int
	Green   int
	Arms    int
	Disarms int
}

// Add counts the given event.
func (c *TransitionCounts) Add(e Event) {
	switch {
	case e.From == PhaseOff && e.To != PhaseOff:
		c.Arms++
	case e.To == PhaseOff:
		c.Disarms++
		return
	}
	switch e.To {
	case Red:
		c.Red++
	case Yellow:
		c.Yellow++
	case Green:
		c.Green++
	}
}
