package triage

import "context"

// Store is the persistence interface for triage results.
type Store interface {
	Get(ctx context.Context, id string) (*Result, bool, error)
	GetByResponse(ctx context.Context, responseID string) (*Result, bool, error)
	ListByPatient(ctx context.Context, patientID string, limit int) ([]*Result, error)
	Put(ctx context.Context, result *Result) error
	// PutNew stores result unless a result for the same response ID exists.
	// It returns the stored result and whether result was the one inserted.
	PutNew(ctx context.Context, result *Result) (*Result, bool, error)
}

// RuleSource supplies the rule list configured for a form.
type RuleSource interface {
	Rules(formID string) ([]Rule, bool)
}

// Notifier delivers a triage result to the care team.
type Notifier interface {
	Send(ctx context.Context, result *Result) error
}
