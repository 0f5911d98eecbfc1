// Package quiethours models a daily local-time silence window during which
// no patient contact may be initiated.
package quiethours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// Window is a daily quiet window in minutes past local midnight.
// The zero value is always open.
type Window struct {
	start int
	end   int
	set   bool
}

// ParseClock converts an "HH:MM" string into minutes past midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock %q: hour out of range", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid clock %q: minute out of range", s)
	}
	return h*60 + m, nil
}

// Parse builds a Window from two "HH:MM" bounds. A missing or malformed
// bound yields an always-open window; authoring tools should reject those
// earlier with ParseClock.
func Parse(start, end string) Window {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return Window{}
	}
	s, err := ParseClock(start)
	if err != nil {
		return Window{}
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}
	}
	if s == e {
		return Window{}
	}
	return Window{start: s, end: e, set: true}
}

// Open reports whether the window never silences anything.
func (w Window) Open() bool { return !w.set }

// WrapsMidnight reports whether the window spans local midnight (e.g. 21:00-09:00).
func (w Window) WrapsMidnight() bool { return w.set && w.start > w.end }

// IsQuiet reports whether t falls inside the window, using t's own location.
func (w Window) IsQuiet(t time.Time) bool {
	if !w.set {
		return false
	}
	m := minuteOfDay(t)
	if w.start <= w.end {
		return m >= w.start && m < w.end
	}
	return m >= w.start || m < w.end
}

// PushOutside returns t unchanged when it is not quiet. Otherwise it returns
// the window's end on t's calendar day, or on the following day when that
// instant is not strictly after t.
func (w Window) PushOutside(t time.Time) time.Time {
	if !w.IsQuiet(t) {
		return t
	}
	y, mo, d := t.Date()
	out := time.Date(y, mo, d, w.end/60, w.end%60, 0, 0, t.Location())
	if !out.After(t) {
		out = time.Date(y, mo, d+1, w.end/60, w.end%60, 0, 0, t.Location())
	}
	return out
}

// String renders the window as "HH:MM-HH:MM", or "open".
func (w Window) String() string {
	if !w.set {
		return "open"
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.start/60, w.start%60, w.end/60, w.end%60)
}

// IsQuiet reports whether t falls inside the start/end window.
func IsQuiet(t time.Time, start, end string) bool {
	return Parse(start, end).IsQuiet(t)
}

// PushOutside moves t to the first instant outside the start/end window.
func PushOutside(t time.Time, start, end string) time.Time {
	return Parse(start, end).PushOutside(t)
}

func minuteOfDay(t time.Time) int {
	return (t.Hour()*60 + t.Minute()) % minutesPerDay
}
