// Package triage turns a patient's submitted answers into an alert severity
// and a list of actionable suggestions for the care team. Evaluate is the
// pure rule engine; Service adds dedup by response, persistence (Store) and
// asynchronous care-team notification of red results.
package triage
