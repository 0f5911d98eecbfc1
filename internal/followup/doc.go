// Package followup computes when a clinic should contact a postoperative
// patient for a check-in. Plan is pure: it never reads the clock and never
// validates its input; Planner wraps it with validation, anchor resolution
// and metrics for the HTTP layer.
package followup
