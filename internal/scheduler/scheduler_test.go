package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/traffic-light/internal/gpio"
	"github.com/sweeney/traffic-light/internal/logic"
)

var errTest = errors.New("simulated gpio fault")

func newTestScheduler(t *testing.T, opts ...Option) (*Scheduler, *gpio.FakeWriter, *FakeClock) {
	t.Helper()
	out := gpio.NewFakeWriter()
	clock := NewFakeClock(epoch)
	s := New(out, append([]Option{WithClock(clock)}, opts...)...)
	return s, out, clock
}

func assertLit(t *testing.T, out *gpio.FakeWriter, want logic.Phase) {
	t.Helper()
	lit := out.Lit()
	if want == logic.PhaseOff {
		if len(lit) != 0 {
			t.Fatalf("expected all lamps off, lit: %v", lit)
		}
		return
	}
	if len(lit) != 1 || lit[0] != want {
		t.Fatalf("expected only %s lit, got %v", want, lit)
	}
}

func TestNewIsDisarmed(t *testing.T) {
	s, out, clock := newTestScheduler(t)

	if s.Powered() {
		t.Error("new scheduler should be disarmed")
	}
	if s.Phase() != logic.PhaseOff {
		t.Errorf("phase: got %s, want OFF", s.Phase())
	}
	if len(out.History()) != 0 {
		t.Errorf("New should not touch outputs, got %v", out.History())
	}
	if clock.Pending() != 0 {
		t.Errorf("expected no pending timer, got %d", clock.Pending())
	}
}

func TestArmLightsRedImmediately(t *testing.T) {
	s, out, clock := newTestScheduler(t)

	if !s.Arm() {
		t.Fatal("Arm should report a state change")
	}
	if !s.Powered() {
		t.Error("expected powered after Arm")
	}
	if s.Phase() != logic.Red {
		t.Errorf("phase: got %s, want RED", s.Phase())
	}
	assertLit(t, out, logic.Red)
	if clock.Pending() != 1 {
		t.Errorf("expected exactly one pending timer, got %d", clock.Pending())
	}
}

func TestCycleOrderAndDwell(t *testing.T) {
	s, out, clock := newTestScheduler(t)
	s.Arm()

	steps := []struct {
		advance time.Duration
		want    logic.Phase
	}{
		{2999 * time.Millisecond, logic.Red},
		{1 * time.Millisecond, logic.Green},
		{2999 * time.Millisecond, logic.Green},
		{1 * time.Millisecond, logic.Yellow},
		{999 * time.Millisecond, logic.Yellow},
		{1 * time.Millisecond, logic.Red},
		{3 * time.Second, logic.Green},
		{3 * time.Second, logic.Yellow},
		{1 * time.Second, logic.Red},
	}

	for i, st := range steps {
		clock.Advance(st.advance)
		if got := s.Phase(); got != st.want {
			t.Fatalf("step %d: phase got %s, want %s", i, got, st.want)
		}
		assertLit(t, out, st.want)
		if clock.Pending() != 1 {
			t.Fatalf("step %d: expected one pending timer, got %d", i, clock.Pending())
		}
	}

	if out.MaxLit() != 1 {
		t.Errorf("at most one lamp may be lit, saw %d", out.MaxLit())
	}
}

func TestLongRunIsCyclic(t *testing.T) {
	var events []logic.Event
	s, _, clock := newTestScheduler(t, WithListener(func(e logic.Event) {
		events = append(events, e)
	}))
	s.Arm()

	for i := 0; i < 100; i++ {
		clock.Advance(time.Second)
	}

	want := []logic.Phase{logic.Red, logic.Green, logic.Yellow}
	for i, e := range events {
		if e.To != want[i%3] {
			t.Fatalf("event %d: got %s, want %s", i, e.To, want[i%3])
		}
		if e.Dwell != logic.Dwell(e.To) {
			t.Errorf("event %d: dwell %v, want %v", i, e.Dwell, logic.Dwell(e.To))
		}
		if i > 0 {
			prev := events[i-1]
			if got := e.Timestamp.Sub(prev.Timestamp); got != prev.Dwell {
				t.Errorf("event %d: %s lasted %v, want %v", i, prev.To, got, prev.Dwell)
			}
		}
	}
	// 100s covers 14 full 7s cycles plus 2s of RED.
	if len(events) != 1+14*3 {
		t.Errorf("expected %d events, got %d", 1+14*3, len(events))
	}
}

func TestArmWhileArmedIsNoop(t *testing.T) {
	s, out, clock := newTestScheduler(t)
	s.Arm()
	clock.Advance(3 * time.Second) // GREEN
	clock.Advance(time.Second)
	before := s.Snapshot()
	writes := len(out.History())

	if s.Arm() {
		t.Error("Arm while armed should report no change")
	}

	after := s.Snapshot()
	if after != before {
		t.Errorf("snapshot changed: before %+v, after %+v", before, after)
	}
	if len(out.History()) != writes {
		t.Error("Arm while armed should not touch outputs")
	}
	if clock.Pending() != 1 {
		t.Errorf("expected one pending timer, got %d", clock.Pending())
	}

	// The dwell countdown was not restarted: GREEN still ends 3s after entry.
	clock.Advance(2 * time.Second)
	if s.Phase() != logic.Yellow {
		t.Errorf("phase: got %s, want YELLOW", s.Phase())
	}
}

func TestDisarmTurnsEverythingOff(t *testing.T) {
	for _, at := range []time.Duration{0, 1 * time.Second, 3 * time.Second, 6 * time.Second, 6500 * time.Millisecond} {
		s, out, clock := newTestScheduler(t)
		s.Arm()
		clock.Advance(at)

		if !s.Disarm() {
			t.Fatalf("at %v: Disarm should report a state change", at)
		}
		assertLit(t, out, logic.PhaseOff)
		if s.Powered() {
			t.Errorf("at %v: expected disarmed", at)
		}
		if s.Phase() != logic.PhaseOff {
			t.Errorf("at %v: phase got %s, want OFF", at, s.Phase())
		}
		if clock.Pending() != 0 {
			t.Errorf("at %v: expected no pending timer, got %d", at, clock.Pending())
		}

		writes := len(out.History())
		clock.Advance(time.Minute)
		if len(out.History()) != writes {
			t.Errorf("at %v: outputs written after Disarm", at)
		}
	}
}

func TestDisarmWhileDisarmedIsNoop(t *testing.T) {
	s, out, _ := newTestScheduler(t)

	if s.Disarm() {
		t.Error("Disarm while disarmed should report no change")
	}
	if len(out.History()) != 0 {
		t.Error("Disarm while disarmed should not touch outputs")
	}

	s.Arm()
	s.Disarm()
	writes := len(out.History())
	if s.Disarm() {
		t.Error("second Disarm should report no change")
	}
	if len(out.History()) != writes {
		t.Error("second Disarm should not touch outputs")
	}
}

func TestStaleFiringIsDiscarded(t *testing.T) {
	// A callback that was already on its way when Disarm ran must not
	// re-assert a lamp.
	s, out, clock := newTestScheduler(t)
	clock.IgnoreStop = true

	s.Arm()
	clock.Advance(time.Second)
	s.Disarm()
	writes := len(out.History())

	clock.Advance(time.Minute)

	assertLit(t, out, logic.PhaseOff)
	if len(out.History()) != writes {
		t.Errorf("stale callback wrote outputs: %v", out.History()[writes:])
	}
	if s.Powered() {
		t.Error("stale callback re-powered the scheduler")
	}
}

func TestStaleFiringAfterRearmIsDiscarded(t *testing.T) {
	s, out, clock := newTestScheduler(t)
	clock.IgnoreStop = true

	s.Arm()
	clock.Advance(2 * time.Second)
	s.Disarm()
	s.Arm() // RED again, fresh 3s dwell

	// The first arm's timer would fire at t=3s; it must not advance the
	// new cycle early.
	clock.Advance(1 * time.Second)
	if s.Phase() != logic.Red {
		t.Fatalf("phase: got %s, want RED", s.Phase())
	}
	clock.Advance(2 * time.Second)
	if s.Phase() != logic.Green {
		t.Fatalf("phase: got %s, want GREEN", s.Phase())
	}
	if out.MaxLit() != 1 {
		t.Errorf("at most one lamp may be lit, saw %d", out.MaxLit())
	}
}

func TestRearmStartsFromRed(t *testing.T) {
	s, out, clock := newTestScheduler(t)
	s.Arm()
	clock.Advance(4 * time.Second) // GREEN
	s.Disarm()

	s.Arm()
	if s.Phase() != logic.Red {
		t.Errorf("phase: got %s, want RED", s.Phase())
	}
	assertLit(t, out, logic.Red)
}

func TestListenerEvents(t *testing.T) {
	var events []logic.Event
	s, _, clock := newTestScheduler(t, WithListener(func(e logic.Event) {
		events = append(events, e)
	}))

	s.Arm()
	clock.Advance(3 * time.Second)
	s.Disarm()
	s.Disarm()

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	if events[0].From != logic.PhaseOff || events[0].To != logic.Red || !events[0].Powered {
		t.Errorf("event 0: got %+v", events[0])
	}
	if events[0].Dwell != 3*time.Second {
		t.Errorf("event 0 dwell: got %v", events[0].Dwell)
	}
	if events[1].From != logic.Red || events[1].To != logic.Green {
		t.Errorf("event 1: got %+v", events[1])
	}
	if !events[1].Timestamp.Equal(epoch.Add(3 * time.Second)) {
		t.Errorf("event 1 timestamp: got %v", events[1].Timestamp)
	}
	if events[2].From != logic.Green || events[2].To != logic.PhaseOff || events[2].Powered {
		t.Errorf("event 2: got %+v", events[2])
	}
}

func TestListenersCalledInOrder(t *testing.T) {
	var calls []string
	s, _, _ := newTestScheduler(t,
		WithListener(func(logic.Event) { calls = append(calls, "first") }),
		WithListener(func(logic.Event) { calls = append(calls, "second") }),
	)

	s.Arm()

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("calls: got %v, want [first second]", calls)
	}
}

func TestSnapshot(t *testing.T) {
	s, _, clock := newTestScheduler(t)

	snap := s.Snapshot()
	if snap.Powered || snap.Phase != logic.PhaseOff || !snap.Deadline.IsZero() {
		t.Errorf("disarmed snapshot: got %+v", snap)
	}

	s.Arm()
	clock.Advance(3 * time.Second)

	snap = s.Snapshot()
	if !snap.Powered || snap.Phase != logic.Green {
		t.Errorf("armed snapshot: got %+v", snap)
	}
	if !snap.Since.Equal(epoch.Add(3 * time.Second)) {
		t.Errorf("since: got %v", snap.Since)
	}
	if !snap.Deadline.Equal(epoch.Add(6 * time.Second)) {
		t.Errorf("deadline: got %v", snap.Deadline)
	}
}

func TestCloseForcesOff(t *testing.T) {
	s, out, clock := newTestScheduler(t)
	s.Arm()
	clock.Advance(4 * time.Second)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	assertLit(t, out, logic.PhaseOff)
	if s.Powered() {
		t.Error("expected disarmed after Close")
	}
	if s.Arm() {
		t.Error("Arm after Close should be a no-op")
	}
	if clock.Pending() != 0 {
		t.Errorf("expected no pending timer, got %d", clock.Pending())
	}
}

func TestCloseWhileDisarmedStillWritesOff(t *testing.T) {
	s, out, _ := newTestScheduler(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := len(out.History()); n != 3 {
		t.Errorf("expected 3 off writes, got %d", n)
	}
}

func TestOutputErrorsDoNotStopCycle(t *testing.T) {
	s, out, clock := newTestScheduler(t)
	out.SetError = errTest

	s.Arm()
	clock.Advance(3 * time.Second)
	if s.Phase() != logic.Green {
		t.Errorf("phase: got %s, want GREEN", s.Phase())
	}
}

func TestConcurrentArmDisarm(t *testing.T) {
	s, out, clock := newTestScheduler(t)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				clock.Advance(500 * time.Millisecond)
			}
		}
	}()

	for i := 0; i < 500; i++ {
		s.Arm()
		if i%3 == 0 {
			s.Disarm()
		}
	}
	s.Disarm()
	close(stop)
	wg.Wait()

	clock.Advance(time.Minute)
	assertLit(t, out, logic.PhaseOff)
	if out.MaxLit() > 1 {
		t.Errorf("at most one lamp may be lit, saw %d", out.MaxLit())
	}
	if s.Powered() {
		t.Error("expected disarmed")
	}
}

func TestRealClockDisarm(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a full red dwell")
	}

	out := gpio.NewFakeWriter()
	s := New(out)
	s.Arm()
	time.Sleep(50 * time.Millisecond)
	s.Disarm()
	writes := len(out.History())

	time.Sleep(logic.Dwell(logic.Red) + 200*time.Millisecond)

	if len(out.History()) != writes {
		t.Errorf("outputs written after Disarm: %v", out.History()[writes:])
	}
	assertLit(t, out, logic.PhaseOff)
}
