package followup

import (
	"time"

	"github.com/linnemanlabs/aftercare/internal/quiethours"
)

const (
	// DefaultMaxCount is the plan length used when callers do not ask for one.
	DefaultMaxCount = 5

	// MaxCountLimit bounds plan output regardless of caller input.
	MaxCountLimit = 20
)

// Send is one planned check-in.
type Send struct {
	// At is when the check-in goes out, always outside quiet hours.
	At time.Time `json:"at"`
	// Scheduled is the cadence grid instant before quiet-hours deferral.
	Scheduled time.Time `json:"scheduled"`
	// Deferred is true when quiet hours moved At away from Scheduled.
	Deferred bool `json:"deferred"`
}

// Plan returns the send instants for cfg measured from anchor, earliest first.
// maxCount is clamped to [1, MaxCountLimit]. The result is never empty.
func Plan(cfg Config, anchor time.Time, maxCount int) []time.Time {
	sends := PlanSends(cfg, anchor, maxCount)
	out := make([]time.Time, len(sends))
	for i := range sends {
		out[i] = sends[i].At
	}
	return out
}

// PlanSends is Plan with the raw grid instant and deferral flag kept per send.
//
// Cadence accumulates on the raw grid (anchor + first + n*cadence), never from
// a deferred instant, so repeated quiet-hours pushes do not drift the schedule.
// A grid point whose deferral lands on or before the previous send is dropped.
// The first send is always kept; later sends never pass EndAfterHours, before
// or after deferral.
func PlanSends(cfg Config, anchor time.Time, maxCount int) []Send {
	maxCount = clampCount(maxCount)
	window := quiethours.Parse(cfg.QuietHoursStart, cfg.QuietHoursEnd)

	raw := anchor.Add(hours(cfg.FirstAfterHours))
	first := window.PushOutside(raw)
	sends := make([]Send, 0, maxCount)
	sends = append(sends, Send{At: first, Scheduled: raw, Deferred: !first.Equal(raw)})

	if cfg.CadenceHours == nil || *cfg.CadenceHours <= 0 {
		return sends
	}
	cadence := hours(*cfg.CadenceHours)

	var cutoff time.Duration
	hasCutoff := cfg.EndAfterHours != nil
	if hasCutoff {
		cutoff = hours(*cfg.EndAfterHours)
	}

	for len(sends) < maxCount {
		raw = raw.Add(cadence)
		if hasCutoff && raw.Sub(anchor) > cutoff {
			break
		}
		at := window.PushOutside(raw)
		if hasCutoff && at.Sub(anchor) > cutoff {
			// every later grid point defers to the same or a later instant
			break
		}
		if !at.After(sends[len(sends)-1].At) {
			continue
		}
		sends = append(sends, Send{At: at, Scheduled: raw, Deferred: !at.Equal(raw)})
	}
	return sends
}

func clampCount(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxCountLimit {
		return MaxCountLimit
	}
	return n
}

func hours(h int) time.Duration {
	return time.Duration(h) * time.Hour
}
