package triage

import "strings"

// Severity is the clinical urgency of a triage outcome.
type Severity string

const (
	// SeverityGreen means no action beyond routine follow-up
	SeverityGreen Severity = "green"

	// SeverityYellow means the care team should review soon
	SeverityYellow Severity = "yellow"

	// SeverityRed means the patient needs attention now
	SeverityRed Severity = "red"
)

// clinic staff author rules in Spanish as often as in English
var severityAliases = map[string]Severity{
	"green":    SeverityGreen,
	"verde":    SeverityGreen,
	"yellow":   SeverityYellow,
	"amarillo": SeverityYellow,
	"red":      SeverityRed,
	"rojo":     SeverityRed,
}

// ParseSeverity normalizes an authored severity label. ok is false for
// labels outside the known set.
func ParseSeverity(s string) (sev Severity, ok bool) {
	sev, ok = severityAliases[strings.ToLower(strings.TrimSpace(s))]
	return sev, ok
}

// Normalize returns the canonical form of s; unknown labels become green.
func (s Severity) Normalize() Severity {
	if sev, ok := ParseSeverity(string(s)); ok {
		return sev
	}
	return SeverityGreen
}

// Rank places s in the order green < yellow < red.
func (s Severity) Rank() int {
	switch s.Normalize() {
	case SeverityRed:
		return 2
	case SeverityYellow:
		return 1
	default:
		return 0
	}
}

// Compare returns -1, 0 or +1 as a is less, equally or more urgent than b.
func Compare(a, b Severity) int {
	ra, rb := a.Rank(), b.Rank()
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// MaxSeverity returns the more urgent of a and b, in canonical form.
func MaxSeverity(a, b Severity) Severity {
	if Compare(b, a) > 0 {
		return b.Normalize()
	}
	return a.Normalize()
}
