package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/linnemanlabs/go-core/log"
)

var tracer = otel.Tracer("github.com/linnemanlabs/aftercare/internal/triage")

var (
	// ErrInvalidResponse is returned for responses missing their identifiers.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrUnknownForm is returned when no rules are configured for the response's form.
	ErrUnknownForm = errors.New("unknown form")
)

// SubmitResult is the outcome of submitting a response for triage.
type SubmitResult struct {
	ID      string
	Skipped bool
	Reason  string
	Result  *Result
}

// Service is the business boundary for triage operations.
type Service struct {
	store    Store
	rules    RuleSource
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
	now      func() time.Time
}

// NewService creates a new triage service. metrics and notifier may be nil.
func NewService(store Store, rules RuleSource, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		rules:    rules,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
		now:      time.Now,
	}
}

// Submit triages a response against its form's rules and persists the result.
// A response already triaged is not evaluated again; its stored result is returned.
func (s *Service) Submit(ctx context.Context, resp *Response) (*SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "triage.Submit")
	defer span.End()

	if resp == nil || strings.TrimSpace(resp.ID) == "" || strings.TrimSpace(resp.PatientID) == "" || strings.TrimSpace(resp.FormID) == "" {
		s.countSubmit("invalid")
		return nil, fmt.Errorf("%w: id, patientId and formId are required", ErrInvalidResponse)
	}
	span.SetAttributes(
		attribute.String("aftercare.response.id", resp.ID),
		attribute.String("aftercare.form.id", resp.FormID),
	)

	// dedup: a response is triaged once
	if existing, ok, err := s.store.GetByResponse(ctx, resp.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.countSubmit("error")
		return nil, fmt.Errorf("lookup response %s: %w", resp.ID, err)
	} else if ok {
		s.countSubmit("duplicate")
		return &SubmitResult{ID: existing.ID, Skipped: true, Reason: "duplicate", Result: existing}, nil
	}

	rules, ok := s.rules.Rules(resp.FormID)
	if !ok {
		s.countSubmit("unknown_form")
		return nil, fmt.Errorf("%w: %s", ErrUnknownForm, resp.FormID)
	}

	data := MergeDataset(resp.Answers, resp.CustomFields)
	ev := Evaluate(rules, data)

	now := s.now()
	submitted := resp.SubmittedAt
	if submitted.IsZero() {
		submitted = now
	}

	result := &Result{
		ID:             ulid.Make().String(),
		ResponseID:     resp.ID,
		PatientID:      resp.PatientID,
		FormID:         resp.FormID,
		Severity:       ev.Severity,
		Suggestions:    ev.Suggestions,
		MatchedRules:   ev.Matched,
		RulesEvaluated: len(rules),
		Dataset:        data,
		Notify:         NotifyNone,
		SubmittedAt:    submitted,
		CreatedAt:      now,
	}
	if ev.Severity == SeverityRed && s.notifier != nil {
		result.Notify = NotifyPending
	}

	stored, created, err := s.store.PutNew(ctx, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.countSubmit("error")
		return nil, fmt.Errorf("persist triage: %w", err)
	}
	if !created {
		// a concurrent submit of the same response won the insert
		s.countSubmit("duplicate")
		return &SubmitResult{ID: stored.ID, Skipped: true, Reason: "duplicate", Result: stored}, nil
	}

	span.SetAttributes(
		attribute.String("aftercare.triage.id", result.ID),
		attribute.String("aftercare.triage.severity", string(result.Severity)),
		attribute.Int("aftercare.triage.matched_rules", result.MatchedRules),
	)
	s.countSubmit("accepted")
	if s.metrics != nil {
		s.metrics.ObserveEvaluation(result.Severity, result.MatchedRules)
	}

	s.logger.Info(ctx, "response triaged",
		"triage_id", result.ID,
		"response_id", result.ResponseID,
		"patient_id", result.PatientID,
		"form_id", result.FormID,
		"severity", string(result.Severity),
		"matched_rules", result.MatchedRules,
		"suggestions", len(result.Suggestions),
	)

	if result.Notify == NotifyPending {
		// kick off async notification - pass only the ID to avoid sharing the Result pointer.
		go s.notify(context.WithoutCancel(ctx), result.ID)
	}

	return &SubmitResult{ID: result.ID, Result: result}, nil
}

// Get retrieves a triage result by ID.
func (s *Service) Get(ctx context.Context, id string) (*Result, bool, error) {
	return s.store.Get(ctx, id)
}

// ListByPatient returns a patient's triage results, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID string, limit int) ([]*Result, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListByPatient(ctx, patientID, limit)
}

func (s *Service) notify(ctx context.Context, id string) {
	L := s.logger.With("triage_id", id)

	result, ok, err := s.store.Get(ctx, id)
	if err != nil || !ok {
		L.Error(ctx, err, "failed to fetch result for notification")
		return
	}

	if err := s.notifier.Send(ctx, result); err != nil {
		L.Error(ctx, err, "care team notification failed", "patient_id", result.PatientID)
		result.Notify = NotifyFailed
		result.NotifyError = err.Error()
	} else {
		result.Notify = NotifySent
		result.NotifiedAt = s.now()
	}
	if s.metrics != nil {
		s.metrics.NotificationsTotal.WithLabelValues(string(result.Notify)).Inc()
	}

	if err := s.store.Put(ctx, result); err != nil {
		L.Error(ctx, err, "failed to persist notification status")
		return
	}
	L.Info(ctx, "care team notification complete", "status", string(result.Notify))
}

func (s *Service) countSubmit(outcome string) {
	if s.metrics != nil {
		s.metrics.SubmitsTotal.WithLabelValues(outcome).Inc()
	}
}
