package flow

import (
	"time"

	"oauthcheck/internal/callback"
)

// StepStatus is the state of a single flow step.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepOK      StepStatus = "ok"
	StepWarning StepStatus = "warning"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Step names, in execution order.
const (
	StepAuthorize = "authorize"
	StepBrowser   = "browser"
	StepWait      = "wait"
	StepReplay    = "replay"
)

// Step records what happened in one flow step.
type Step struct {
	Name   string
	Status StepStatus
	Detail string
}

// Report is the record of one run.
type Report struct {
	RunID            string
	CallbackURL      string
	AuthorizationURL string
	// Callback is set once the listener accepted a callback.
	Callback *callback.Result
	// Outcome is set once the callback was replayed.
	Outcome  *Outcome
	Steps    []Step
	Started  time.Time
	Duration time.Duration
}

func newReport(runID string) *Report {
	r := &Report{
		RunID:   runID,
		Started: time.Now(),
	}
	for _, name := range []string{StepAuthorize, StepBrowser, StepWait, StepReplay} {
		r.Steps = append(r.Steps, Step{Name: name, Status: StepPending})
	}
	return r
}

func (r *Report) mark(name string, status StepStatus, detail string) {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			r.Steps[i].Status = status
			r.Steps[i].Detail = detail
			return
		}
	}
}

// finish marks every step still pending as skipped.
func (r *Report) finish() {
	for i := range r.Steps {
		if r.Steps[i].Status == StepPending {
			r.Steps[i].Status = StepSkipped
		}
	}
	r.Duration = time.Since(r.Started)
}

// Step returns the named step.
func (r *Report) Step(name string) Step {
	for _, s := range r.Steps {
		if s.Name == name {
			return s
		}
	}
	return Step{Name: name}
}

// Succeeded reports whether the backend completed the flow.
func (r *Report) Succeeded() bool {
	return r.Outcome != nil && r.Outcome.Succeeded()
}
