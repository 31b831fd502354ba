// Package scheduler advances the traffic light through its phases.
//
// A Scheduler owns the current phase and at most one pending timer. Each
// firing turns the current lamp off, turns the next one on and re-arms the
// timer for the next phase's dwell time. Arm, Disarm and the timer
// callback are serialised by a single mutex.
package scheduler

import (
	"log"
	"sync"
	"time"

	"github.com/sweeney/traffic-light/internal/gpio"
	"github.com/sweeney/traffic-light/internal/logic"
)

// Listener receives every observable change. It is called with the
// scheduler lock held: it must not block or call back into the Scheduler.
type Listener func(logic.Event)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock. Used by tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithListener registers a listener for phase changes. Listeners are
// called in registration order.
func WithListener(l Listener) Option {
	return func(s *Scheduler) { s.listeners = append(s.listeners, l) }
}

// Snapshot is a point-in-time view of the scheduler.
type Snapshot struct {
	Phase    logic.Phase // logic.PhaseOff while disarmed
	Powered  bool
	Since    time.Time // when Phase was entered
	Deadline time.Time // when the pending timer fires; zero while disarmed
}

// Scheduler drives a gpio.Writer through the transition table.
type Scheduler struct {
	out       gpio.Writer
	clock     Clock
	listeners []Listener

	mu       sync.Mutex
	phase    logic.Phase
	powered  bool
	closed   bool
	timer    Timer
	seq      uint64 // identifies the only timer allowed to advance the phase
	since    time.Time
	deadline time.Time
}

// New creates a disarmed Scheduler driving out.
func New(out gpio.Writer, opts ...Option) *Scheduler {
	s := &Scheduler{
		out:   out,
		clock: RealClock{},
		phase: logic.PhaseOff,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.since = s.clock.Now()
	return s
}

// Arm starts the cycle from the initial phase. It is a no-op returning
// false if the cycle is already running or the scheduler is closed.
func (s *Scheduler) Arm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.powered || s.closed {
		return false
	}

	s.powered = true
	s.enterLocked(logic.PhaseOff, logic.Initial, logic.Dwell(logic.Initial))
	return true
}

// Disarm cancels the pending timer and turns every lamp off. It is a
// no-op returning false if the cycle is not running.
//
// When Disarm returns, no timer callback can change the outputs: a callback
// already running has completed (it holds the lock), and any later one
// carries a stale sequence number and is discarded.
func (s *Scheduler) Disarm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.powered {
		return false
	}
	s.stopLocked()
	return true
}

// Close disarms and forces every lamp off, even if already disarmed.
// Arm is a no-op afterwards.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.powered {
		s.stopLocked()
	}
	s.closed = true
	return gpio.AllOff(s.out)
}

// Powered reports whether the cycle is running.
func (s *Scheduler) Powered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.powered
}

// Phase returns the lit phase, or logic.PhaseOff while disarmed.
func (s *Scheduler) Phase() logic.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Snapshot returns the current state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Phase:    s.phase,
		Powered:  s.powered,
		Since:    s.since,
		Deadline: s.deadline,
	}
}

// fire is the timer callback for the timer numbered seq.
func (s *Scheduler) fire(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.powered || seq != s.seq {
		return
	}

	cur := s.phase
	next, dwell := logic.Next(cur)
	s.set(cur, false)
	s.enterLocked(cur, next, dwell)
}

// enterLocked lights next, records it and schedules the next firing.
func (s *Scheduler) enterLocked(from, next logic.Phase, dwell time.Duration) {
	s.set(next, true)
	s.phase = next
	s.since = s.clock.Now()
	s.scheduleLocked(dwell)
	s.emit(logic.Event{
		Timestamp: s.since,
		From:      from,
		To:        next,
		Dwell:     dwell,
		Powered:   true,
	})
}

// scheduleLocked replaces any pending timer with a new one firing after d.
func (s *Scheduler) scheduleLocked(d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.seq++
	seq := s.seq
	s.deadline = s.since.Add(d)
	s.timer = s.clock.AfterFunc(d, func() { s.fire(seq) })
}

func (s *Scheduler) stopLocked() {
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	from := s.phase
	if err := gpio.AllOff(s.out); err != nil {
		log.Printf("scheduler: turn lamps off: %v", err)
	}
	s.powered = false
	s.phase = logic.PhaseOff
	s.since = s.clock.Now()
	s.deadline = time.Time{}
	s.emit(logic.Event{
		Timestamp: s.since,
		From:      from,
		To:        logic.PhaseOff,
	})
}

// set writes a lamp level. Output writes are not expected to fail once the
// lines are requested; failures are logged and the cycle carries on.
func (s *Scheduler) set(p logic.Phase, on bool) {
	if err := s.out.Set(p, on); err != nil {
		log.Printf("scheduler: set %s=%v: %v", p, on, err)
	}
}

func (s *Scheduler) emit(e logic.Event) {
	for _, l := range s.listeners {
		l(e)
	}
}
