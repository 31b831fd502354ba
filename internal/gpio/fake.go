package gpio

import (
	"sync"

	"github.com/sweeney/traffic-light/internal/logic"
)

// FakeWriter is a test double that records lamp writes.
// Safe for concurrent use.
type FakeWriter struct {
	mu sync.Mutex

	levels  map[logic.Phase]bool
	history []Write
	maxLit  int
	closed  bool

	// SetError, if set, will be returned by Set (the level is still recorded).
	SetError error
}

// Write is a single recorded Set call.
type Write struct {
	Phase logic.Phase
	On    bool
}

// NewFakeWriter creates a FakeWriter with all lamps off.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{levels: make(map[logic.Phase]bool)}
}

// Set records the lamp level.
func (f *FakeWriter) Set(p logic.Phase, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.levels[p] = on
	f.history = append(f.history, Write{Phase: p, On: on})
	if n := f.litLocked(); n > f.maxLit {
		f.maxLit = n
	}
	return f.SetError
}

// Close marks the writer as closed and drives every lamp low.
func (f *FakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for p := range f.levels {
		f.levels[p] = false
	}
	f.closed = true
	return nil
}

// IsOn reports the last level written for p.
func (f *FakeWriter) IsOn(p logic.Phase) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[p]
}

// Lit returns the lamps currently on, in cycle order.
func (f *FakeWriter) Lit() []logic.Phase {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []logic.Phase
	for _, p := range logic.Phases() {
		if f.levels[p] {
			out = append(out, p)
		}
	}
	return out
}

// MaxLit returns the largest number of lamps ever on at the same time.
func (f *FakeWriter) MaxLit() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxLit
}

// History returns a copy of every recorded write.
func (f *FakeWriter) History() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Write(nil), f.history...)
}

// Closed reports whether Close was called.
func (f *FakeWriter) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded writes and levels.
func (f *FakeWriter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels = make(map[logic.Phase]bool)
	f.history = nil
	f.maxLit = 0
	f.closed = false
	f.SetError = nil
}

func (f *FakeWriter) litLocked() int {
	n := 0
	for _, on := range f.levels {
		if on {
			n++
		}
	}
	return n
}
