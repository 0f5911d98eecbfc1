package triage

import "time"

// NotifyStatus tracks care-team notification of a triage result.
type NotifyStatus string

const (
	// NotifyNone means the result did not call for a notification
	NotifyNone NotifyStatus = "none"

	// NotifyPending means a notification is queued
	NotifyPending NotifyStatus = "pending"

	// NotifySent means the care team was notified
	NotifySent NotifyStatus = "sent"

	// NotifyFailed means delivery failed; the result still stands
	NotifyFailed NotifyStatus = "failed"
)

// Response is a patient's submitted check-in form.
type Response struct {
	ID           string         `json:"id"`
	PatientID    string         `json:"patientId"`
	FormID       string         `json:"formId"`
	Answers      map[string]any `json:"answers"`
	CustomFields map[string]any `json:"customFields,omitempty"`
	SubmittedAt  time.Time      `json:"submittedAt,omitzero"`
}

// Result is the persisted triage of one Response.
type Result struct {
	ID             string       `json:"id"`
	ResponseID     string       `json:"response_id"`
	PatientID      string       `json:"patient_id"`
	FormID         string       `json:"form_id"`
	Severity       Severity     `json:"severity"`
	Suggestions    []Suggestion `json:"suggestions"`
	MatchedRules   int          `json:"matched_rules"`
	RulesEvaluated int          `json:"rules_evaluated"`
	Dataset        Dataset      `json:"dataset,omitempty"`
	Notify         NotifyStatus `json:"notify_status"`
	NotifyError    string       `json:"notify_error,omitempty"`
	SubmittedAt    time.Time    `json:"submitted_at"`
	CreatedAt      time.Time    `json:"created_at"`
	NotifiedAt     time.Time    `json:"notified_at,omitzero"`
}
