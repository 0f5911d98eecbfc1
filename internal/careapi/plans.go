package careapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/aftercare/internal/followup"
)

// planBody is the payload of POST /plan. Anchor is shorthand for setting
// the anchor event the config names.
type planBody struct {
	PatientID string           `json:"patientId,omitempty"`
	Config    followup.Config  `json:"config"`
	Anchor    *time.Time       `json:"anchor,omitempty"`
	Anchors   followup.Anchors `json:"anchors"`
	MaxCount  int              `json:"maxCount,omitempty"`
}

type formPlanBody struct {
	PatientID string           `json:"patientId,omitempty"`
	Anchor    *time.Time       `json:"anchor,omitempty"`
	Anchors   followup.Anchors `json:"anchors"`
	MaxCount  int              `json:"maxCount,omitempty"`
}

type batchBody struct {
	Requests []followup.PlanRequest `json:"requests"`
}

func (a *API) handlePlan(w http.ResponseWriter, r *http.Request) {
	var body planBody
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Anchor != nil {
		body.Anchors.Set(body.Config.Anchor, *body.Anchor)
	}

	a.plan(w, r, &followup.PlanRequest{
		PatientID: body.PatientID,
		Config:    body.Config,
		Anchors:   body.Anchors,
		MaxCount:  body.MaxCount,
	})
}

func (a *API) handlePlanForm(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formID")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("aftercare.form.id", formID))

	form, ok := a.forms.Form(formID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown form")
		return
	}
	if form.Schedule == nil {
		writeError(w, http.StatusUnprocessableEntity, "form has no follow-up schedule")
		return
	}

	var body formPlanBody
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Anchor != nil {
		body.Anchors.Set(form.Schedule.Anchor, *body.Anchor)
	}

	a.plan(w, r, &followup.PlanRequest{
		PatientID: body.PatientID,
		FormID:    form.ID,
		Config:    *form.Schedule,
		Anchors:   body.Anchors,
		MaxCount:  body.MaxCount,
	})
}

func (a *API) plan(w http.ResponseWriter, r *http.Request, req *followup.PlanRequest) {
	resp, err := a.planner.Plan(r.Context(), req)
	switch {
	case errors.Is(err, followup.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, followup.ErrMissingAnchor):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		a.logger.Error(r.Context(), err, "follow-up planning failed", "form_id", req.FormID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.Int("aftercare.plan.sends", len(resp.Sends)),
		attribute.Int("aftercare.plan.deferred", resp.Deferred),
	)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePlanBatch(w http.ResponseWriter, r *http.Request) {
	var body batchBody
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body.Requests) == 0 {
		writeError(w, http.StatusBadRequest, "requests must not be empty")
		return
	}
	if len(body.Requests) > a.batchLimit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d requests per batch", a.batchLimit))
		return
	}

	// requests may name a catalog form instead of carrying a config
	for i := range body.Requests {
		req := &body.Requests[i]
		if req.FormID == "" || req.Config.Anchor != "" {
			continue
		}
		if form, ok := a.forms.Form(req.FormID); ok && form.Schedule != nil {
			req.Config = *form.Schedule
		}
	}

	results, err := a.planner.PlanBatch(r.Context(), body.Requests)
	if err != nil {
		a.logger.Error(r.Context(), err, "batch planning aborted", "requests", len(body.Requests))
		writeError(w, http.StatusServiceUnavailable, "batch aborted")
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int("aftercare.plan.batch_size", len(results)))
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
