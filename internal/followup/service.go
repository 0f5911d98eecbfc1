package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/go-core/log"
)

// batchConcurrency bounds how many plans PlanBatch computes at once.
const batchConcurrency = 8

// ErrMissingAnchor is returned when the patient record lacks the event the config anchors on.
var ErrMissingAnchor = errors.New("anchor event not recorded for patient")

// Anchors carries the event instants known for a patient. The surrounding
// system resolves them from the patient record.
type Anchors struct {
	Surgery      *time.Time `json:"surgery,omitempty"`
	Discharge    *time.Time `json:"discharge,omitempty"`
	Registration *time.Time `json:"registration,omitempty"`
}

// Resolve returns the instant for a, if recorded.
func (a Anchors) Resolve(anchor Anchor) (time.Time, bool) {
	var t *time.Time
	switch anchor {
	case AnchorSurgery:
		t = a.Surgery
	case AnchorDischarge:
		t = a.Discharge
	case AnchorRegistration:
		t = a.Registration
	}
	if t == nil || t.IsZero() {
		return time.Time{}, false
	}
	return *t, true
}

// Set records t as the instant of the given anchor event. Unknown anchors are ignored.
func (a *Anchors) Set(anchor Anchor, t time.Time) {
	switch anchor {
	case AnchorSurgery:
		a.Surgery = &t
	case AnchorDischarge:
		a.Discharge = &t
	case AnchorRegistration:
		a.Registration = &t
	}
}

// PlanRequest asks for the follow-up plan of one patient/form pair.
type PlanRequest struct {
	PatientID string  `json:"patientId,omitempty"`
	FormID    string  `json:"formId,omitempty"`
	Config    Config  `json:"config"`
	Anchors   Anchors `json:"anchors"`
	MaxCount  int     `json:"maxCount,omitempty"`
}

// PlanResponse is the computed plan for a PlanRequest.
type PlanResponse struct {
	PatientID string      `json:"patientId,omitempty"`
	FormID    string      `json:"formId,omitempty"`
	Anchor    time.Time   `json:"anchor"`
	Sends     []time.Time `json:"sends"`
	Detail    []Send      `json:"detail"`
	Deferred  int         `json:"deferred"`
	Error     string      `json:"error,omitempty"`
}

// Hooks observe planning outcomes. Nil fields are skipped.
type Hooks struct {
	OnPlan func(sends, deferred int)
	OnFail func(reason string)
}

// Planner validates requests and runs Plan. It holds no per-call state.
type Planner struct {
	logger log.Logger
	hooks  Hooks
}

// NewPlanner creates a Planner.
func NewPlanner(logger log.Logger, hooks Hooks) *Planner {
	if logger == nil {
		logger = log.Nop()
	}
	return &Planner{logger: logger, hooks: hooks}
}

// Plan validates req, resolves its anchor in the config's time zone and plans.
func (p *Planner) Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error) {
	if err := req.Config.Validate(); err != nil {
		p.fail("invalid_config")
		return nil, err
	}

	anchor, ok := req.Anchors.Resolve(req.Config.Anchor)
	if !ok {
		p.fail("missing_anchor")
		return nil, fmt.Errorf("%w: %s", ErrMissingAnchor, req.Config.Anchor)
	}
	anchor = anchor.In(req.Config.Location(anchor.Location()))

	maxCount := req.MaxCount
	if maxCount == 0 {
		maxCount = DefaultMaxCount
	}

	detail := PlanSends(req.Config, anchor, maxCount)
	resp := &PlanResponse{
		PatientID: req.PatientID,
		FormID:    req.FormID,
		Anchor:    anchor,
		Sends:     make([]time.Time, len(detail)),
		Detail:    detail,
	}
	for i, s := range detail {
		resp.Sends[i] = s.At
		if s.Deferred {
			resp.Deferred++
		}
	}

	if p.hooks.OnPlan != nil {
		p.hooks.OnPlan(len(resp.Sends), resp.Deferred)
	}
	p.logger.Info(ctx, "follow-up planned",
		"patient_id", req.PatientID,
		"form_id", req.FormID,
		"anchor", string(req.Config.Anchor),
		"sends", len(resp.Sends),
		"deferred", resp.Deferred,
	)
	return resp, nil
}

// PlanBatch plans every request concurrently. Results keep input order; a
// request that fails carries its error message instead of aborting the batch.
func (p *Planner) PlanBatch(ctx context.Context, reqs []PlanRequest) ([]PlanResponse, error) {
	out := make([]PlanResponse, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resp, err := p.Plan(gctx, &reqs[i])
			if err != nil {
				out[i] = PlanResponse{PatientID: reqs[i].PatientID, FormID: reqs[i].FormID, Error: err.Error()}
				return nil
			}
			out[i] = *resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Planner) fail(reason string) {
	if p.hooks.OnFail != nil {
		p.hooks.OnFail(reason)
	}
}
