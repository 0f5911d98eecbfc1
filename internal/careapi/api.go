// Package careapi exposes follow-up planning and response triage over HTTP.
package careapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/aftercare/internal/catalog"
	"github.com/linnemanlabs/aftercare/internal/followup"
	"github.com/linnemanlabs/aftercare/internal/triage"
)

const (
	defaultBatchLimit = 100
	maxEvaluateRules  = 500
)

// TriageService defines the triage operations careapi needs.
type TriageService interface {
	Submit(ctx context.Context, resp *triage.Response) (*triage.SubmitResult, error)
	Get(ctx context.Context, id string) (*triage.Result, bool, error)
	ListByPatient(ctx context.Context, patientID string, limit int) ([]*triage.Result, error)
}

// Planner defines the follow-up planning operations careapi needs.
type Planner interface {
	Plan(ctx context.Context, req *followup.PlanRequest) (*followup.PlanResponse, error)
	PlanBatch(ctx context.Context, reqs []followup.PlanRequest) ([]followup.PlanResponse, error)
}

// Forms looks up catalog forms.
type Forms interface {
	Form(id string) (catalog.Form, bool)
	Forms() []catalog.Form
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger     log.Logger
	svc        TriageService
	planner    Planner
	forms      Forms
	batchLimit int
}

// Option customizes the API.
type Option func(*API)

// WithBatchLimit caps the number of requests accepted by the batch planning route.
func WithBatchLimit(n int) Option {
	return func(a *API) {
		if n > 0 {
			a.batchLimit = n
		}
	}
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService, planner Planner, forms Forms, opts ...Option) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	if planner == nil {
		panic(xerrors.New("follow-up planner is required"))
	}
	if forms == nil {
		panic(xerrors.New("form catalog is required"))
	}
	a := &API{
		logger:     logger,
		svc:        svc,
		planner:    planner,
		forms:      forms,
		batchLimit: defaultBatchLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterRoutes attaches API endpoints to the router. mw wraps every /api route,
// typically with bearer authentication.
func (a *API) RegisterRoutes(r chi.Router, mw ...func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw...)

		r.Post("/plan", a.handlePlan)
		r.Post("/plans:batch", a.handlePlanBatch)
		r.Post("/evaluate", a.handleEvaluate)

		r.Get("/forms", a.handleListForms)
		r.Get("/forms/{formID}", a.handleGetForm)
		r.Post("/forms/{formID}/plan", a.handlePlanForm)

		r.Post("/responses", a.handleSubmitResponse)
		r.Get("/triage/{id}", a.handleGetTriage)
		r.Get("/patients/{patientID}/triage", a.handleListPatientTriage)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a single JSON document from the request body.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid payload: %w", err)
	}
	if dec.More() {
		return errors.New("invalid payload: trailing data")
	}
	return nil
}
