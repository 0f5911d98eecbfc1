package careapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/aftercare/internal/authmw"
	"github.com/linnemanlabs/aftercare/internal/triage"
)

type evaluateBody struct {
	Rules   []triage.Rule  `json:"rules"`
	Dataset triage.Dataset `json:"dataset"`
}

func (a *API) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var body evaluateBody
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body.Rules) > maxEvaluateRules {
		writeError(w, http.StatusBadRequest, "too many rules")
		return
	}

	ev := triage.Evaluate(body.Rules, body.Dataset)
	writeJSON(w, http.StatusOK, ev)
}

func (a *API) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	var resp triage.Response
	if err := decode(r, &resp); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	span := trace.SpanFromContext(r.Context())
	principal, _ := authmw.PrincipalFromContext(r.Context())

	sr, err := a.svc.Submit(r.Context(), &resp)
	switch {
	case errors.Is(err, triage.ErrInvalidResponse):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, triage.ErrUnknownForm):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		a.logger.Error(r.Context(), err, "failed to triage response", "response_id", resp.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	span.SetAttributes(
		attribute.String("aftercare.triage.id", sr.ID),
		attribute.Bool("aftercare.triage.duplicate", sr.Skipped),
	)
	a.logger.Info(r.Context(), "response accepted",
		"triage_id", sr.ID,
		"response_id", resp.ID,
		"principal", principal,
		"duplicate", sr.Skipped,
	)

	status := http.StatusCreated
	if sr.Skipped {
		status = http.StatusOK
	}
	writeJSON(w, status, sr.Result)
}

func (a *API) handleGetTriage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("aftercare.triage.id", id))

	result, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get triage result", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	span.SetAttributes(attribute.String("aftercare.triage.severity", string(result.Severity)))
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleListPatientTriage(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results, err := a.svc.ListByPatient(r.Context(), patientID, limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list triage results", "patient_id", patientID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if results == nil {
		results = []*triage.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
