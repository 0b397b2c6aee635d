// Package submit turns a finished composition into create requests, one per
// action step.
package submit

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/automatr/internal/api"
	"github.com/mark3labs/automatr/internal/journal"
	"github.com/mark3labs/automatr/internal/logger"
	"github.com/mark3labs/automatr/internal/wizard"
)

// DefaultAreaName is used when the composition has no name.
const DefaultAreaName = "Untitled Workflow"

var (
	// ErrNotReady means some step lacks a service or an event.
	ErrNotReady = errors.New("composition not ready to submit")
	// ErrNoCredential means the user is not signed in.
	ErrNoCredential = errors.New("not signed in")
	// ErrTotalFailure means no automation was created.
	ErrTotalFailure = errors.New("no automation could be created")
)

// Creator is the backend surface the submitter needs.
type Creator interface {
	CreateArea(ctx context.Context, req api.CreateAreaRequest) (*api.Area, error)
	HasCredential() bool
}

// Recorder keeps a history of submissions.
type Recorder interface {
	Record(ctx context.Context, sub journal.Submission) (journal.Submission, error)
}

// Outcome is the result of one action's request.
type Outcome struct {
	StepID  string
	Request api.CreateAreaRequest
	Area    *api.Area
	Err     error
}

// Result aggregates a submission. Created automations are never rolled back.
type Result struct {
	Created  int
	Failed   int
	Outcomes []Outcome // in action order
}

// Partial reports whether some but not all requests failed.
func (r Result) Partial() bool {
	return r.Created > 0 && r.Failed > 0
}

// Submitter issues create requests.
type Submitter struct {
	api         Creator
	recorder    Recorder
	concurrency int
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithRecorder records every submission.
func WithRecorder(r Recorder) Option {
	return func(s *Submitter) { s.recorder = r }
}

// WithConcurrency limits the number of requests in flight.
func WithConcurrency(n int) Option {
	return func(s *Submitter) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a submitter.
func New(c Creator, opts ...Option) *Submitter {
	s := &Submitter{api: c, concurrency: 4}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Requests builds one create request per action step.
func Requests(st wizard.State) ([]api.CreateAreaRequest, error) {
	if !st.CanSubmit() {
		return nil, ErrNotReady
	}
	reqs := make([]api.CreateAreaRequest, 0, len(st.Actions))
	for _, a := range st.Actions {
		reqs = append(reqs, Request(st, a))
	}
	return reqs, nil
}

// Request builds the create request combining the trigger with one action.
// Missing selections are left blank, which makes it usable as a preview.
func Request(st wizard.State, action wizard.Step) api.CreateAreaRequest {
	req := api.CreateAreaRequest{
		Name:          st.AreaName,
		TriggerConfig: configOf(st.Trigger),
		ActionConfig:  configOf(action),
	}
	if req.Name == "" {
		req.Name = DefaultAreaName
	}
	if st.Trigger.Service != nil {
		req.TriggerServiceID = st.Trigger.Service.ID
	}
	if st.Trigger.Event != nil {
		req.TriggerEventID = st.Trigger.Event.ID
	}
	if action.Service != nil {
		req.ActionServiceID = action.Service.ID
	}
	if action.Event != nil {
		req.ActionEventID = action.Event.ID
	}
	return req
}

func configOf(st wizard.Step) map[string]string {
	if st.Config == nil {
		return map[string]string{}
	}
	return maps.Clone(st.Config)
}

// Submit creates one automation per action step. It returns ErrNotReady or
// ErrNoCredential without issuing any request when the preconditions fail,
// and ErrTotalFailure alongside the result when nothing was created.
func (s *Submitter) Submit(ctx context.Context, st wizard.State) (Result, error) {
	reqs, err := Requests(st)
	if err != nil {
		return Result{}, err
	}
	if !s.api.HasCredential() {
		return Result{}, ErrNoCredential
	}

	outcomes := make([]Outcome, len(reqs))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			area, err := s.api.CreateArea(ctx, req)
			outcomes[i] = Outcome{StepID: st.Actions[i].ID, Request: req, Area: area, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Err != nil {
			logger.Error("Create request for %s failed: %v", o.StepID, o.Err)
			res.Failed++
			continue
		}
		res.Created++
	}
	logger.Info("Submitted %d automations: %d created, %d failed", len(reqs), res.Created, res.Failed)

	s.record(ctx, st, res)

	if res.Created == 0 {
		return res, fmt.Errorf("%w: %d requests failed", ErrTotalFailure, res.Failed)
	}
	return res, nil
}

// record writes the outcome to the journal. Journal failures are logged only.
func (s *Submitter) record(ctx context.Context, st wizard.State, res Result) {
	if s.recorder == nil {
		return
	}
	sub := journal.Submission{
		AreaName: res.Outcomes[0].Request.Name,
		Trigger:  res.Outcomes[0].Request.TriggerServiceID + "/" + res.Outcomes[0].Request.TriggerEventID,
	}
	for _, o := range res.Outcomes {
		jo := journal.Outcome{
			StepID: o.StepID,
			Action: o.Request.ActionServiceID + "/" + o.Request.ActionEventID,
		}
		if o.Area != nil {
			jo.AreaID = o.Area.ID
		}
		if o.Err != nil {
			jo.Error = o.Err.Error()
		}
		sub.Outcomes = append(sub.Outcomes, jo)
	}
	if _, err := s.recorder.Record(ctx, sub); err != nil {
		logger.Warn("Failed to journal submission: %v", err)
	}
}
