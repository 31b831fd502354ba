// Package control implements the power control surface: the text coercion
// shared by every surface, and the watched control file.
package control

import (
	"strconv"
	"strings"
)

// Target is the piece of the system a power write acts on.
type Target interface {
	Arm() bool
	Disarm() bool
	Powered() bool
}

// ParsePower coerces a written value to a power state. It never fails on
// content: a leading integer means on when non-zero, the usual boolean
// words are honoured, and anything else means off. ok is false only when s
// holds nothing but whitespace, which callers treat as "no write".
func ParsePower(s string) (on bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, false
	}

	if b, err := strconv.ParseBool(s); err == nil {
		return b, true
	}
	switch strings.ToLower(s) {
	case "on", "yes", "y":
		return true, true
	case "off", "no", "n":
		return false, true
	}

	if n, found := leadingInt(s); found {
		return n != 0, true
	}
	return false, true
}

// leadingInt parses an optionally signed run of decimal digits at the
// start of s, ignoring whatever follows ("12abc" is 12).
func leadingInt(s string) (int64, bool) {
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		// Out of range: too many digits to be zero.
		return 1, true
	}
	return n, true
}

// FormatPower renders a power state as it is read back from every surface.
func FormatPower(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

// Apply arms t on a truthy write only if it is disarmed, and disarms it on
// a falsy write only if it is armed. It reports whether anything changed.
func Apply(t Target, on bool) bool {
	if on == t.Powered() {
		return false
	}
	if on {
		return t.Arm()
	}
	return t.Disarm()
}

// ApplyText parses s and applies it to t. Blank writes are ignored.
func ApplyText(t Target, s string) bool {
	on, ok := ParsePower(s)
	if !ok {
		return false
	}
	return Apply(t, on)
}
