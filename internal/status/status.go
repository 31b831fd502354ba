// Package status provides a thread-safe status tracker for the traffic-light daemon.
// It is read by the HTTP handlers and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/traffic-light/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Chip        string
	PinRed      int
	PinYellow   int
	PinGreen    int
	ControlPath string
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Phase         logic.Phase
	Powered       bool
	PhaseSince    time.Time
	Deadline      time.Time // zero while disarmed
	Counts        logic.TransitionCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Remaining returns how long the lit phase has left, or 0 while disarmed.
func (s Snapshot) Remaining() time.Duration {
	if !s.Powered || s.Deadline.IsZero() || s.Now.After(s.Deadline) {
		return 0
	}
	return s.Deadline.Sub(s.Now)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Phase:      logic.PhaseOff,
			PhaseSince: startTime,
			StartTime:  startTime,
			Config:     cfg,
		},
		now: time.Now,
	}
}

// Record applies a scheduler event. It does not block beyond the tracker
// lock, so it is safe to call from a scheduler listener.
func (t *Tracker) Record(e logic.Event) {
	t.mu.Lock()
	t.snap.Phase = e.To
	t.snap.Powered = e.Powered
	t.snap.PhaseSince = e.Timestamp
	if e.Powered {
		t.snap.Deadline = e.Timestamp.Add(e.Dwell)
	} else {
		t.snap.Deadline = time.Time{}
	}
	t.snap.Counts.Add(e)
	t.mu.Unlock()
}

// Powered reports the last recorded power state.
func (t *Tracker) Powered() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.Powered
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetClock replaces the time source used for Snapshot.Now. Used by tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	now := t.now
	t.mu.RUnlock()
	s.Now = now()
	return s
}
