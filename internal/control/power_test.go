package control

import (
	"sync"
	"testing"
)

// fakeTarget records arm/disarm calls. Safe for concurrent use.
type fakeTarget struct {
	mu      sync.Mutex
	powered bool
	arms    int
	disarms int
}

func (f *fakeTarget) Arm() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.arms++
	if f.powered {
		return false
	}
	f.powered = true
	return true
}

func (f *fakeTarget) Disarm() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disarms++
	if !f.powered {
		return false
	}
	f.powered = false
	return true
}

func (f *fakeTarget) Powered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.powered
}

func (f *fakeTarget) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.arms, f.disarms
}

func TestParsePower(t *testing.T) {
	tests := []struct {
		in     string
		wantOn bool
		wantOK bool
	}{
		{"1", true, true},
		{"1\n", true, true},
		{"  1  ", true, true},
		{"0", false, true},
		{"0\n", false, true},
		{"2", true, true},
		{"-1", true, true},
		{"+0", false, true},
		{"007", true, true},
		{"12abc", true, true},
		{"0xyz", false, true},
		{"99999999999999999999999", true, true},
		{"true", true, true},
		{"TRUE", true, true},
		{"t", true, true},
		{"false", false, true},
		{"on", true, true},
		{"ON", true, true},
		{"yes", true, true},
		{"off", false, true},
		{"no", false, true},
		{"banana", false, true},
		{"-", false, true},
		{"", false, false},
		{"   \n\t", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			on, ok := ParsePower(tt.in)
			if on != tt.wantOn || ok != tt.wantOK {
				t.Errorf("ParsePower(%q) = (%v, %v), want (%v, %v)", tt.in, on, ok, tt.wantOn, tt.wantOK)
			}
		})
	}
}

func TestFormatPower(t *testing.T) {
	if got := FormatPower(true); got != "1" {
		t.Errorf("FormatPower(true) = %q, want 1", got)
	}
	if got := FormatPower(false); got != "0" {
		t.Errorf("FormatPower(false) = %q, want 0", got)
	}
}

func TestApplyGating(t *testing.T) {
	tgt := &fakeTarget{}

	if Apply(tgt, false) {
		t.Error("off while off should not change state")
	}
	if arms, disarms := tgt.counts(); arms != 0 || disarms != 0 {
		t.Errorf("off while off should not call through, got arms=%d disarms=%d", arms, disarms)
	}

	if !Apply(tgt, true) {
		t.Error("on while off should change state")
	}
	if Apply(tgt, true) {
		t.Error("on while on should not change state")
	}
	if arms, _ := tgt.counts(); arms != 1 {
		t.Errorf("Arm should be called once, got %d", arms)
	}

	if !Apply(tgt, false) {
		t.Error("off while on should change state")
	}
	if _, disarms := tgt.counts(); disarms != 1 {
		t.Errorf("Disarm should be called once, got %d", disarms)
	}
}

func TestApplyText(t *testing.T) {
	tgt := &fakeTarget{}

	if ApplyText(tgt, "\n") {
		t.Error("blank write should be ignored")
	}
	if !ApplyText(tgt, "1\n") || !tgt.Powered() {
		t.Error("expected armed after writing 1")
	}
	if !ApplyText(tgt, "garbage") || tgt.Powered() {
		t.Error("expected disarmed after malformed write")
	}
}
