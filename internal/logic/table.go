package logic

import (
	"fmt"
	"time"
)

// transitions is indexed by the current phase. Each row's Duration is the
// dwell time of the row's own phase, read by the scheduler after it has
// computed the next phase.
var transitions = map[Phase]Transition{
	Red:    {Next: Green, Duration: 3 * time.Second},
	Green:  {Next: Yellow, Duration: 3 * time.Second},
	Yellow: {Next: Red, Duration: 1 * time.Second},
}

// Initial is the phase the cycle starts from when armed.
const Initial = Red

// Lookup returns the table row for p.
// Panics if p is not one of Red, Yellow or Green.
func Lookup(p Phase) Transition {
	t, ok := transitions[p]
	if !ok {
		panic(fmt.Sprintf("logic: unknown phase %q", string(p)))
	}
	return t
}

// Next returns the phase that follows p and how long it stays lit.
func Next(p Phase) (Phase, time.Duration) {
	next := Lookup(p).Next
	return next, Lookup(next).Duration
}

// Dwell returns how long p stays lit once entered.
func Dwell(p Phase) time.Duration {
	return Lookup(p).Duration
}

// Phases returns the three phases in cycle order starting from Initial.
func Phases() []Phase {
	out := make([]Phase, 0, len(transitions))
	p := Initial
	for range transitions {
		out = append(out, p)
		p = Lookup(p).Next
	}
	return out
}

// Valid reports whether p is one of the three lamp phases.
func (p Phase) Valid() bool {
	_, ok := transitions[p]
	return ok
}
